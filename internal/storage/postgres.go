package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/Jamiexiao242/SignalDeck/internal/config"
	"github.com/Jamiexiao242/SignalDeck/internal/research"
)

// Storage 研究结果的 Postgres 持久化层。可选组件：
// 未配置数据库时引擎照常运行，只是不落库。
type Storage struct {
	db *sql.DB
}

func NewStorage(cfg config.DBConfig) (*Storage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS research_runs (
			id SERIAL PRIMARY KEY,
			subject TEXT NOT NULL,
			tickers TEXT,
			report TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS ticker_searches (
			id SERIAL PRIMARY KEY,
			run_id INTEGER REFERENCES research_runs(id),
			symbol TEXT NOT NULL,
			topic_index INTEGER,
			query TEXT,
			status TEXT,
			result_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS search_hits (
			id SERIAL PRIMARY KEY,
			ticker_search_id INTEGER REFERENCES ticker_searches(id),
			title TEXT,
			url TEXT,
			content TEXT
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}

	return nil
}

// SaveRun 在一个事务里保存一次完整的研究产物
func (s *Storage) SaveRun(subject string, out *research.Output) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var runID int
	err = tx.QueryRow(`
		INSERT INTO research_runs (subject, tickers, report)
		VALUES ($1, $2, $3)
		RETURNING id`,
		subject, strings.Join(out.Tickers, ","), removeNullBytes(out.Report)).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert research run: %w", err)
	}

	for _, tr := range out.TickerResults {
		for _, task := range tr.Searches {
			var searchID int
			err = tx.QueryRow(`
				INSERT INTO ticker_searches (run_id, symbol, topic_index, query, status, result_count)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				runID, tr.Symbol, task.TopicIndex, task.Query, task.Status, len(task.Results)).Scan(&searchID)
			if err != nil {
				return 0, fmt.Errorf("failed to insert ticker search: %w", err)
			}

			for _, hit := range task.Results {
				_, err = tx.Exec(`
					INSERT INTO search_hits (ticker_search_id, title, url, content)
					VALUES ($1, $2, $3, $4)`,
					searchID, hit.Title, hit.URL, removeNullBytes(hit.Content))
				if err != nil {
					return 0, fmt.Errorf("failed to insert search hit: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// Postgres 文本字段不支持 NULL 字节
func removeNullBytes(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
