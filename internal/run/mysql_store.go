package run

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	xerrors "TubeDigest/internal/errors"
	"github.com/go-sql-driver/mysql"
)

// MySQLStore 使用 MySQL 记录运行状态。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 创建一个新的 MySQLStore。
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "无法连接到 MySQL")
	}

	store := &MySQLStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) initSchema() error {
	const schema = `CREATE TABLE IF NOT EXISTS run_states (
        id VARCHAR(64) PRIMARY KEY,
        url TEXT NOT NULL,
        video_id VARCHAR(128) DEFAULT '',
        metadata TEXT,
        status VARCHAR(32) NOT NULL,
        stage VARCHAR(32) DEFAULT '',
        last_error TEXT,
        error_code VARCHAR(64) DEFAULT '',
        result_artifact_path TEXT,
        result_word_count INT NOT NULL DEFAULT 0,
        result_model VARCHAR(128) DEFAULT '',
        result_style VARCHAR(32) DEFAULT '',
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        INDEX idx_run_status (status),
        INDEX idx_run_updated (updated_at)
)`

	if _, err := s.db.Exec(schema); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 run_states 表失败")
	}
	if _, err := s.db.Exec(`ALTER TABLE run_states ADD COLUMN stage VARCHAR(32) DEFAULT '' AFTER status`); err != nil {
		var mysqlErr *mysql.MySQLError
		if !(stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1060) {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "扩展 run_states.stage 失败")
		}
	}
	if _, err := s.db.Exec(`ALTER TABLE run_states ADD COLUMN metadata TEXT AFTER video_id`); err != nil {
		var mysqlErr *mysql.MySQLError
		if !(stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1060) {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, "扩展 run_states.metadata 失败")
		}
	}
	return nil
}

// Create 插入新的运行记录。
func (s *MySQLStore) Create(ctx context.Context, run *Run) error {
	if run == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "run 不能为空")
	}
	if strings.TrimSpace(run.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "运行 ID 不能为空")
	}

	now := time.Now().Unix()
	run.CreatedAt = now
	run.UpdatedAt = now

	metadataValue, err := marshalMetadata(run.Metadata)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码运行 metadata 失败")
	}

	const stmt = `INSERT INTO run_states
        (id, url, video_id, metadata, status, stage, last_error, error_code, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, '', '', '', ?, ?)`

	_, err = s.db.ExecContext(ctx, stmt,
		run.ID,
		run.URL,
		run.VideoID,
		metadataValue,
		run.Status,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrRunConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入运行失败")
	}
	return nil
}

// Get 查询指定运行。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Run, error) {
	const stmt = `SELECT id, url, video_id, metadata, status, stage, last_error, error_code,
        result_artifact_path, result_word_count, result_model, result_style, created_at, updated_at
        FROM run_states WHERE id = ?`

	row := s.db.QueryRowContext(ctx, stmt, id)
	run, err := scanRun(row.Scan)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// Claim 将运行标记为运行中并返回最新状态。失败是终态，
// 仅允许从待处理状态认领。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Run, error) {
	const updateStmt = `UPDATE run_states SET status = ?, stage = '', updated_at = ?, last_error = '', error_code = ''
        WHERE id = ? AND status = ?`

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, updateStmt,
		StatusRunning,
		now,
		id,
		StatusPending,
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新运行状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	if affected == 0 {
		run, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		switch run.Status {
		case StatusSucceeded:
			return run, ErrRunCompleted
		default:
			return run, ErrRunConflict
		}
	}
	return s.Get(ctx, id)
}

// MarkSucceeded 将运行标记为成功。
func (s *MySQLStore) MarkSucceeded(ctx context.Context, id string, outcome Outcome) error {
	const stmt = `UPDATE run_states SET status = ?, result_artifact_path = ?, result_word_count = ?,
        result_model = ?, result_style = ?, stage = '', updated_at = ?, last_error = '', error_code = '' WHERE id = ?`

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, stmt,
		StatusSucceeded,
		outcome.ArtifactPath,
		outcome.WordCount,
		outcome.Model,
		outcome.Style,
		now,
		id,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记运行成功失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// MarkFailed 将运行标记为失败，并记录出错的阶段。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, stage, lastError string) error {
	const stmt = `UPDATE run_states SET status = ?, stage = ?, last_error = ?, error_code = ?, updated_at = ? WHERE id = ?`

	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, stmt,
		StatusFailed,
		stage,
		lastError,
		string(code),
		now,
		id,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记运行失败失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrRunNotFound
	}
	return nil
}

// List 返回最近的运行。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Run, error) {
	opts.applyDefaults()

	query := `SELECT id, url, video_id, metadata, status, stage, last_error, error_code,
        result_artifact_path, result_word_count, result_model, result_style, created_at, updated_at FROM run_states`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}

	order := " ORDER BY updated_at DESC, created_at DESC, id DESC"
	if opts.Order == SortByUpdatedAsc {
		order = " ORDER BY updated_at ASC, created_at ASC, id ASC"
	}
	query += order + " LIMIT ? OFFSET ?"

	args := append(filterArgs, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询运行列表失败")
	}
	defer rows.Close()

	runs := make([]*Run, 0, opts.Limit)
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历运行失败")
	}
	return runs, nil
}

// Stats 返回符合过滤条件的运行聚合信息。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (RunStats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*) AS total,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS pending,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS running,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS succeeded,
        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS failed,
        COALESCE(MIN(updated_at), 0) AS oldest,
        COALESCE(MAX(updated_at), 0) AS newest
        FROM run_states`

	clause, filterArgs := buildFilterClause(opts)
	if clause != "" {
		query += " WHERE " + clause
	}

	args := []any{string(StatusPending), string(StatusRunning), string(StatusSucceeded), string(StatusFailed)}
	args = append(args, filterArgs...)

	row := s.db.QueryRowContext(ctx, query, args...)

	var stats RunStats
	if err := row.Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Running,
		&stats.Succeeded,
		&stats.Failed,
		&stats.OldestUpdatedAt,
		&stats.NewestUpdatedAt,
	); err != nil {
		return RunStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询运行统计失败")
	}
	if stats.Total == 0 {
		stats.OldestUpdatedAt = 0
		stats.NewestUpdatedAt = 0
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRun(scan func(dest ...any) error) (*Run, error) {
	var run Run
	var outcome Outcome
	var metadata sql.NullString
	var artifactPath sql.NullString
	var lastError sql.NullString

	if err := scan(
		&run.ID,
		&run.URL,
		&run.VideoID,
		&metadata,
		&run.Status,
		&run.Stage,
		&lastError,
		&run.ErrorCode,
		&artifactPath,
		&outcome.WordCount,
		&outcome.Model,
		&outcome.Style,
		&run.CreatedAt,
		&run.UpdatedAt,
	); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析运行记录失败")
	}
	run.LastError = lastError.String
	outcome.ArtifactPath = artifactPath.String

	decodedMetadata, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析运行 metadata 失败")
	}
	run.Metadata = decodedMetadata

	if outcome.ArtifactPath != "" || outcome.Model != "" || outcome.Style != "" || outcome.WordCount > 0 {
		run.Result = &outcome
	}
	return &run, nil
}

func marshalMetadata(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	bytes, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(bytes), Valid: true}, nil
}

func unmarshalMetadata(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func buildFilterClause(opts ListOptions) (string, []any) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 6)

	if len(opts.Statuses) > 0 {
		placeholders := make([]string, 0, len(opts.Statuses))
		for range opts.Statuses {
			placeholders = append(placeholders, "?")
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	if opts.UpdatedGTE > 0 {
		conditions = append(conditions, "updated_at >= ?")
		args = append(args, opts.UpdatedGTE)
	}
	if opts.UpdatedLTE > 0 {
		conditions = append(conditions, "updated_at <= ?")
		args = append(args, opts.UpdatedLTE)
	}
	if opts.HasOutcome != nil {
		if *opts.HasOutcome {
			conditions = append(conditions, "(result_artifact_path <> '' OR result_model <> '' OR result_style <> '' OR result_word_count > 0)")
		} else {
			conditions = append(conditions, "((result_artifact_path IS NULL OR result_artifact_path = '') AND result_model = '' AND result_style = '' AND result_word_count = 0)")
		}
	}
	if opts.Query != "" {
		pattern := "%" + opts.Query + "%"
		conditions = append(conditions, "(id LIKE ? OR url LIKE ? OR video_id LIKE ? OR metadata LIKE ? OR last_error LIKE ? OR error_code LIKE ? OR result_artifact_path LIKE ? OR result_model LIKE ?)")
		args = append(args,
			pattern,
			pattern,
			pattern,
			pattern,
			pattern,
			pattern,
			pattern,
			pattern,
		)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " AND "), args
}

var _ Store = (*MySQLStore)(nil)
