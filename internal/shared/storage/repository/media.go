// Package repository MediaRecord 相关的存储操作
package repository

import (
	"context"
	"database/sql"

	"report-media/internal/shared/model"
	"report-media/internal/shared/storage"
)

const mediaRecordColumns = `id, report_id, object_name, media_type, mime_type, size, role, created_at`

// CreateMediaRecord 创建媒体记录
func (s *Store) CreateMediaRecord(ctx context.Context, record *model.MediaRecord) error {
	query := s.rebind(`
		INSERT INTO media_records (` + mediaRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.ReportID, record.ObjectName, string(record.Category),
		record.MimeType, record.Size, string(record.Role), record.CreatedAt)
	return wrapError(err)
}

// ListMediaRecords 查询 Report 的媒体记录
func (s *Store) ListMediaRecords(ctx context.Context, reportID string, role model.MediaRole) ([]*model.MediaRecord, error) {
	query := `SELECT ` + mediaRecordColumns + ` FROM media_records WHERE report_id = $1`
	args := []interface{}{reportID}
	if role != "" {
		query += ` AND role = $2`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at ASC, object_name ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, wrapError(err)
	}
	defer rows.Close()
	return scanMediaRecords(rows)
}

// DeleteMediaRecord 按对象名删除媒体记录
func (s *Store) DeleteMediaRecord(ctx context.Context, objectName string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM media_records WHERE object_name = $1`), objectName)
	if err != nil {
		return wrapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanMediaRecords 批量扫描
func scanMediaRecords(rows *sql.Rows) ([]*model.MediaRecord, error) {
	records := []*model.MediaRecord{}
	for rows.Next() {
		rec := &model.MediaRecord{}
		var category, role sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ReportID, &rec.ObjectName, &category,
			&rec.MimeType, &rec.Size, &role, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Category = model.MediaCategory(category.String)
		rec.Role = model.MediaRole(role.String)
		records = append(records, rec)
	}
	return records, rows.Err()
}
