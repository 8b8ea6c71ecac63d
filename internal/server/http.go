package server

import (
	"encoding/json"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/Jamiexiao242/SignalDeck/internal/config"
	"github.com/Jamiexiao242/SignalDeck/internal/logger"
	"github.com/Jamiexiao242/SignalDeck/internal/research"
	"github.com/Jamiexiao242/SignalDeck/internal/storage"
)

// researchRequest 是 /api/research 的请求体
type researchRequest struct {
	Subject string `json:"subject"`
}

type researchResponse struct {
	Subject string           `json:"subject"`
	Result  *research.Output `json:"result"`
	RunID   int              `json:"run_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPServer 构建 HTTP 服务，store 可为 nil（不持久化）
func NewHTTPServer(c config.ServerConfig, eng *research.Engine, store *storage.Storage) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Addr != "" {
		opts = append(opts, http.Address(c.Addr))
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			opts = append(opts, http.Timeout(d))
		}
	}

	srv := http.NewServer(opts...)

	srv.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	srv.HandleFunc("/api/research", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			writeJSON(w, nethttp.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		var req researchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
			writeJSON(w, nethttp.StatusBadRequest, errorResponse{Error: "subject is required"})
			return
		}

		logger.Log.Infof("收到研究请求: %s", req.Subject)
		out, err := eng.Run(r.Context(), req.Subject, func(line string) {
			logger.Log.Info(line)
		})
		if err != nil {
			logger.Log.Errorf("研究执行失败: %v", err)
			writeJSON(w, nethttp.StatusInternalServerError, errorResponse{Error: err.Error()})
			return
		}

		resp := researchResponse{Subject: req.Subject, Result: out}
		if store != nil {
			if id, err := store.SaveRun(req.Subject, out); err != nil {
				logger.Log.Errorf("保存研究结果失败: %v", err)
			} else {
				resp.RunID = id
			}
		}
		writeJSON(w, nethttp.StatusOK, resp)
	})

	return srv
}

func writeJSON(w nethttp.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("写入响应失败: %v", err)
	}
}
