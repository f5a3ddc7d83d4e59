package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/internal/config"
	"github.com/nemonet1337/zaiStockLedger/internal/logger"
)

// migration is one SQL file on disk
type migration struct {
	filename string
	content  []byte
	checksum string
}

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました: ", err)
	}

	zapLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました: ", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("zaiStockLedger マイグレーション実行ツール")

	// マイグレーションディレクトリの確認
	migrationDir := "migrations"
	if len(os.Args) > 1 {
		migrationDir = os.Args[1]
	}
	if _, err := os.Stat(migrationDir); os.IsNotExist(err) {
		zapLogger.Fatal("マイグレーションディレクトリが見つかりません", zap.String("dir", migrationDir))
	}

	// データベース接続
	zapLogger.Info("データベースに接続中",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("dbname", cfg.Database.DBName),
	)
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		zapLogger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション履歴テーブルの作成
	if err := createMigrationTable(db); err != nil {
		zapLogger.Fatal("マイグレーション履歴テーブル作成に失敗しました", zap.Error(err))
	}

	// マイグレーション実行
	if err := runMigrations(db, migrationDir, zapLogger); err != nil {
		zapLogger.Fatal("マイグレーション実行に失敗しました", zap.Error(err))
	}

	zapLogger.Info("すべてのマイグレーションが完了しました")
}

// createMigrationTable マイグレーション履歴テーブルを作成
func createMigrationTable(db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) NOT NULL UNIQUE,
			executed_at TIMESTAMP NOT NULL DEFAULT NOW(),
			checksum VARCHAR(64) NOT NULL
		)`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("マイグレーション履歴テーブル作成エラー: %w", err)
	}
	return nil
}

// runMigrations マイグレーションを実行
func runMigrations(db *sqlx.DB, migrationDir string, logger *zap.Logger) error {
	migrations, err := loadMigrations(migrationDir)
	if err != nil {
		return err
	}
	if len(migrations) == 0 {
		logger.Warn("マイグレーションファイルが見つかりません", zap.String("dir", migrationDir))
		return nil
	}

	executed, err := getExecutedMigrations(db)
	if err != nil {
		return fmt.Errorf("実行済みマイグレーション取得エラー: %w", err)
	}

	pending, err := pendingMigrations(migrations, executed)
	if err != nil {
		return err
	}

	for _, m := range pending {
		logger.Info("実行中", zap.String("file", m.filename))

		tx, err := db.Beginx()
		if err != nil {
			return fmt.Errorf("トランザクション開始エラー %s: %w", m.filename, err)
		}

		if _, err := tx.Exec(string(m.content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("マイグレーション実行エラー %s: %w", m.filename, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
			m.filename, m.checksum,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("マイグレーション履歴記録エラー %s: %w", m.filename, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("トランザクションコミットエラー %s: %w", m.filename, err)
		}

		logger.Info("完了", zap.String("file", m.filename), zap.String("checksum", m.checksum))
	}

	logger.Info("マイグレーション結果",
		zap.Int("executed", len(pending)),
		zap.Int("skipped", len(migrations)-len(pending)),
	)
	return nil
}

// loadMigrations reads every .sql file of dir in filename order
func loadMigrations(dir string) ([]migration, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("マイグレーションファイル検索エラー: %w", err)
	}
	sort.Strings(files)

	migrations := make([]migration, 0, len(files))
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("ファイル読み込みエラー %s: %w", filepath.Base(file), err)
		}
		migrations = append(migrations, migration{
			filename: filepath.Base(file),
			content:  content,
			checksum: calculateChecksum(content),
		})
	}
	return migrations, nil
}

// pendingMigrations returns the migrations not yet executed. An executed file whose
// content changed since it ran is an error.
func pendingMigrations(migrations []migration, executed map[string]string) ([]migration, error) {
	var pending []migration
	for _, m := range migrations {
		checksum, done := executed[m.filename]
		if !done {
			pending = append(pending, m)
			continue
		}
		if checksum != m.checksum {
			return nil, fmt.Errorf("実行済みマイグレーションが変更されています %s (記録: %s, 現在: %s)", m.filename, checksum, m.checksum)
		}
	}
	return pending, nil
}

// getExecutedMigrations 実行済みマイグレーションとチェックサムを取得
func getExecutedMigrations(db *sqlx.DB) (map[string]string, error) {
	var rows []struct {
		Filename string `db:"filename"`
		Checksum string `db:"checksum"`
	}
	if err := db.Select(&rows, "SELECT filename, checksum FROM schema_migrations"); err != nil {
		return nil, err
	}

	executed := make(map[string]string, len(rows))
	for _, row := range rows {
		executed[row.Filename] = row.Checksum
	}
	return executed, nil
}

// calculateChecksum ファイル内容のSHA-256チェックサムを計算
func calculateChecksum(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
