// Package repository Report 相关的存储操作
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"
)

const reportColumns = `id, app_id, organisation, app_name, title, gif_status, gif_version,
	gif_status_updated_at, media, intermediate_frames, created_at, updated_at`

// refColumn 可整体读写的媒体列表列
type refColumn string

const (
	colMedia              refColumn = "media"
	colIntermediateFrames refColumn = "intermediate_frames"
)

// CreateReport 创建 Report
func (s *Store) CreateReport(ctx context.Context, report *model.Report) error {
	media, err := encodeRefs(report.Media)
	if err != nil {
		return err
	}
	frames, err := encodeRefs(report.IntermediateFrames)
	if err != nil {
		return err
	}
	status := report.GifStatus
	if status == "" {
		status = model.GifStatusNotInitiated
	}
	var statusUpdatedAt sql.NullTime
	if !report.GifStatusUpdatedAt.IsZero() {
		statusUpdatedAt = sql.NullTime{Time: report.GifStatusUpdatedAt, Valid: true}
	}

	query := s.rebind(`
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`)
	_, err = s.db.ExecContext(ctx, query,
		report.ID, report.AppID, report.Organisation, report.AppName, report.Title,
		string(status), report.GifVersion, statusUpdatedAt, media, frames,
		report.CreatedAt, report.UpdatedAt)
	return wrapError(err)
}

// GetReport 获取 Report
func (s *Store) GetReport(ctx context.Context, id string) (*model.Report, error) {
	query := s.rebind(`SELECT ` + reportColumns + ` FROM reports WHERE id = $1`)
	report, err := scanReport(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapError(err)
	}
	return report, nil
}

// scanReport 辅助函数
func scanReport(scanner interface {
	Scan(dest ...interface{}) error
}) (*model.Report, error) {
	r := &model.Report{}
	var (
		status          sql.NullString
		statusUpdatedAt sql.NullTime
		media, frames   []byte
	)
	err := scanner.Scan(
		&r.ID, &r.AppID, &r.Organisation, &r.AppName, &r.Title, &status, &r.GifVersion,
		&statusUpdatedAt, &media, &frames, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.GifStatus = model.GifStatus(status.String)
	if r.GifStatus == "" {
		r.GifStatus = model.GifStatusNotInitiated
	}
	if statusUpdatedAt.Valid {
		r.GifStatusUpdatedAt = statusUpdatedAt.Time
	}
	if r.Media, err = decodeRefs(media); err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	if r.IntermediateFrames, err = decodeRefs(frames); err != nil {
		return nil, fmt.Errorf("decode intermediate frames: %w", err)
	}
	return r, nil
}

// UpdateGifStatus 以 (gif_status, gif_version) 为条件更新状态
func (s *Store) UpdateGifStatus(ctx context.Context, id string, from model.GifStatus, version int64, to model.GifStatus) (int64, error) {
	statusCond := "gif_status = $5"
	if from == model.GifStatusNotInitiated {
		statusCond = "(gif_status = $5 OR gif_status IS NULL OR gif_status = '')"
	}
	now := time.Now()
	query := s.rebind(`
		UPDATE reports
		SET gif_status = $1, gif_version = gif_version + 1, gif_status_updated_at = $2, updated_at = $3
		WHERE id = $4 AND ` + statusCond + ` AND gif_version = $6
	`)
	res, err := s.db.ExecContext(ctx, query, string(to), now, now, id, string(from), version)
	if err != nil {
		return 0, wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM reports WHERE id = $1`), id).Scan(&exists)
		if err != nil {
			return 0, wrapError(err)
		}
		return 0, storage.ErrConflict
	}
	return version + 1, nil
}

// SetIntermediateFrames 覆盖中间帧列表
func (s *Store) SetIntermediateFrames(ctx context.Context, id string, frames []model.MediaRef) error {
	return s.modifyRefs(ctx, id, colIntermediateFrames, func([]model.MediaRef) []model.MediaRef {
		return frames
	})
}

// ClearIntermediateFrames 清空中间帧列表
func (s *Store) ClearIntermediateFrames(ctx context.Context, id string) error {
	return s.SetIntermediateFrames(ctx, id, nil)
}

// AppendMedia 追加媒体引用
func (s *Store) AppendMedia(ctx context.Context, id string, media model.MediaRef) error {
	return s.modifyRefs(ctx, id, colMedia, func(refs []model.MediaRef) []model.MediaRef {
		return append(refs, media)
	})
}

// RemoveMedia 按对象名移除媒体引用
func (s *Store) RemoveMedia(ctx context.Context, id string, objectName string) error {
	return s.modifyRefs(ctx, id, colMedia, func(refs []model.MediaRef) []model.MediaRef {
		kept := make([]model.MediaRef, 0, len(refs))
		for _, r := range refs {
			if r.ObjectName != objectName {
				kept = append(kept, r)
			}
		}
		return kept
	})
}

// modifyRefs 在事务内读取、修改并写回一个媒体列表列
func (s *Store) modifyRefs(ctx context.Context, id string, col refColumn, fn func([]model.MediaRef) []model.MediaRef) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := s.rebind(fmt.Sprintf(`SELECT %s FROM reports WHERE id = $1 %s`, col, s.dialect.ForUpdateClause()))
	var raw []byte
	if err := tx.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		return wrapError(err)
	}
	refs, err := decodeRefs(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", col, err)
	}
	encoded, err := encodeRefs(fn(refs))
	if err != nil {
		return err
	}

	update := s.rebind(fmt.Sprintf(`UPDATE reports SET %s = $1, updated_at = $2 WHERE id = $3`, col))
	if _, err := tx.ExecContext(ctx, update, encoded, time.Now(), id); err != nil {
		return wrapError(err)
	}
	return tx.Commit()
}
