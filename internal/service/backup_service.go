package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"questionnaire_backend/internal/model"
	"questionnaire_backend/internal/util"
	"questionnaire_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const backupBatchSize = 200

// BackupService 把全部问卷导出为一个 JSON 快照写入存储后端
type BackupService struct {
	Store   QuestionnaireStore
	Storage *StorageService
	Now     util.Clock
}

func NewBackupService(store QuestionnaireStore, storage *StorageService, clock util.Clock) *BackupService {
	if clock == nil {
		clock = util.SystemClock
	}
	return &BackupService{Store: store, Storage: storage, Now: clock}
}

type BackupResult struct {
	Object     string `json:"object"`
	URL        string `json:"url"`
	Rows       int    `json:"rows"`
	ExportedAt string `json:"exported_at"`
}

type backupRow struct {
	ID           uint            `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Grade        string          `json:"grade"`
	ParentPhone  string          `json:"parent_phone"`
	ParentWechat string          `json:"parent_wechat"`
	ParentEmail  string          `json:"parent_email"`
	SubmissionID *string         `json:"submission_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Data         json.RawMessage `json:"data"`
}

type backupDocument struct {
	ExportedAt     string      `json:"exported_at"`
	Count          int         `json:"count"`
	Questionnaires []backupRow `json:"questionnaires"`
}

func (s *BackupService) Export(ctx context.Context) (*BackupResult, error) {
	if s.Storage == nil {
		return nil, util.ErrStorageNotConfigured
	}

	now := s.Now()
	doc := backupDocument{
		ExportedAt:     now.UTC().Format(time.RFC3339),
		Questionnaires: []backupRow{},
	}
	err := s.Store.ForEachBatch(ctx, backupBatchSize, func(batch []model.Questionnaire) error {
		for i := range batch {
			q := &batch[i]
			doc.Questionnaires = append(doc.Questionnaires, backupRow{
				ID:           q.ID,
				Name:         q.Name,
				Type:         q.Type,
				Grade:        q.Grade,
				ParentPhone:  q.ParentPhone,
				ParentWechat: q.ParentWechat,
				ParentEmail:  q.ParentEmail,
				SubmissionID: q.SubmissionID,
				CreatedAt:    q.CreatedAt,
				// 驱动可能复用缓冲区
				Data: append(json.RawMessage(nil), q.Data...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read questionnaires: %w", err)
	}
	doc.Count = len(doc.Questionnaires)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}

	object := fmt.Sprintf("questionnaires/backup-%s-%s.json", now.Format("20060102-150405"), uuid.New().String()[:8])
	url, err := s.Storage.Upload(ctx, object, bytes.NewReader(buf.Bytes()), int64(buf.Len()), "application/json")
	if err != nil {
		return nil, fmt.Errorf("upload backup: %w", err)
	}

	logger.Log.Info("Questionnaire backup exported",
		zap.String("object", object),
		zap.Int("rows", doc.Count),
	)
	return &BackupResult{Object: object, URL: url, Rows: doc.Count, ExportedAt: doc.ExportedAt}, nil
}
