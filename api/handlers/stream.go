package handlers

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/moxer-mmh/blocking-responses-poc/api"
	"github.com/moxer-mmh/blocking-responses-poc/compliance"
	"github.com/moxer-mmh/blocking-responses-poc/config"
	"github.com/moxer-mmh/blocking-responses-poc/internal/ctxkeys"
	"github.com/moxer-mmh/blocking-responses-poc/internal/metrics"
	"github.com/moxer-mmh/blocking-responses-poc/stream"
	"github.com/moxer-mmh/blocking-responses-poc/tokenizer"
	"github.com/moxer-mmh/blocking-responses-poc/types"
)

// StreamHandler 流式中继端点。
type StreamHandler struct {
	cfg     *config.Config
	gate    *compliance.Gate
	source  stream.TokenSource
	tok     tokenizer.Tokenizer
	counter *metrics.Collector
	logger  *zap.Logger
}

// NewStreamHandler 创建流式中继处理器。counter 可为 nil。
func NewStreamHandler(cfg *config.Config, gate *compliance.Gate, source stream.TokenSource, tok tokenizer.Tokenizer, counter *metrics.Collector, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		cfg:     cfg,
		gate:    gate,
		source:  source,
		tok:     tok,
		counter: counter,
		logger:  logger.With(zap.String("handler", "stream")),
	}
}

// HandleStream 处理 POST /v1/chat/stream。
//
// 请求体里的 0 值参数回落到服务配置；用户输入先过一次预筛，
// 被拒绝时整个响应只有一帧 blocked 事件。
// @Summary 流式聊天（合规中继）
// @Accept json
// @Produce text/event-stream
// @Success 200 {string} string "SSE 流"
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	var req api.StreamRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Message == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "message is required", h.logger)
		return
	}

	params := h.sessionParams(&req)
	sess := compliance.NewSession(req.Message, params)
	ctx := ctxkeys.WithSessionID(r.Context(), sess.ID)

	logger := h.logger.With(zap.String("session_id", sess.ID))
	if id, ok := ctxkeys.RequestID(ctx); ok {
		logger = logger.With(zap.String("request_id", id))
	}
	logger.Info("stream session started",
		zap.String("region", params.Region),
		zap.Float64("risk_threshold", params.RiskThreshold),
	)

	if h.counter != nil {
		h.counter.SessionStarted()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", h.logger)
		return
	}

	// 设置 SSE 响应头
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // 禁用 nginx 缓冲

	// 输入预筛：被拒绝的输入不开上游流。
	if h.cfg.Compliance.ScreenInput {
		verdict, err := h.gate.Assess(ctx, req.Message, params.Region, params.RiskThreshold)
		if err != nil {
			return
		}
		if verdict.Blocked() {
			h.gate.RecordInputBlocked(ctx, sess, verdict)
			ev := &stream.Event{
				ID:   1,
				Type: stream.EventBlocked,
				Payload: map[string]any{
					"message": "request rejected: input triggered the active compliance policy",
				},
				Risk:      verdict.Score,
				Timestamp: time.Now().UTC(),
			}
			if err := api.WriteSSEEvent(w, ev); err == nil {
				flusher.Flush()
			}
			return
		}
	}

	pipeline := stream.NewPipeline(stream.PipelineConfig{
		Gate:          h.gate,
		Source:        h.source,
		Tokenizer:     h.tok,
		QueueCapacity: h.cfg.Relay.QueueCapacity,
		Heartbeat:     h.cfg.Relay.HeartbeatInterval,
		WindowTokens:  h.cfg.Relay.WindowTokens,
		OverlapTokens: h.cfg.Relay.OverlapTokens,
		EvalFrequency: h.cfg.Relay.EvalFrequency,
		SafeRewrite:   h.cfg.Relay.SafeRewrite,
		Logger:        logger,
	}, params)

	pipeline.Run(ctx, sess, req.Message)

	// 消费循环：短超时轮询感知管线结束，断连由 ctx 终止。
	for {
		ev, err := pipeline.Events().Poll(ctx, time.Second)
		if err != nil {
			if errors.Is(err, stream.ErrPollTimeout) {
				continue
			}
			if ctx.Err() != nil {
				logger.Debug("client disconnected",
					zap.Error(types.NewError(types.ErrClientDisconnect, "client went away").WithCause(ctx.Err())))
			}
			// 否则是队列关闭，即会话正常终止。
			return
		}
		if err := api.WriteSSEEvent(w, ev); err != nil {
			logger.Debug("client write failed",
				zap.Error(types.NewError(types.ErrClientDisconnect, "client write failed").WithCause(err)))
			return
		}
		flusher.Flush()
	}
}

// sessionParams 合并请求覆盖与服务默认值。
func (h *StreamHandler) sessionParams(req *api.StreamRequest) compliance.SessionParams {
	params := compliance.SessionParams{
		LookaheadTokens: h.cfg.Relay.LookaheadTokens,
		FlushInterval:   h.cfg.Relay.FlushInterval,
		RiskThreshold:   h.cfg.Compliance.RiskThreshold,
		Region:          h.cfg.Compliance.DefaultRegion,
	}
	if req.LookaheadTokens > 0 {
		params.LookaheadTokens = req.LookaheadTokens
	}
	if req.FlushIntervalMs > 0 {
		params.FlushInterval = time.Duration(req.FlushIntervalMs) * time.Millisecond
	}
	if req.RiskThreshold > 0 {
		params.RiskThreshold = req.RiskThreshold
	}
	if req.Region != "" {
		params.Region = req.Region
	}
	return params
}
