package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fangyuan99/uni-api/internal/aggregate"
	"github.com/fangyuan99/uni-api/internal/llmevent"
	"github.com/fangyuan99/uni-api/internal/streaming"
)

var timeNow = time.Now

// chatCompletionRequest extracts only the fields the gateway core needs to
// route and render; full request-body translation per upstream is a table
// lookup that lives outside this core.
type chatCompletionRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}

var defaultErrorTriggers = []string{
	"\"error\"",
	"insufficient_quota",
	"invalid_api_key",
	"rate_limit",
}

func (s *Server) findRuntime(model string) *Runtime {
	for _, r := range s.runtimes {
		if r.SupportsModel(model) {
			return r
		}
	}
	return nil
}

func (s *Server) handleChatCompletions(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var req chatCompletionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed JSON body"})
		return
	}

	runtime := s.findRuntime(req.Model)
	if runtime == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no configured provider serves model " + req.Model})
		return
	}

	ctx := c.Request.Context()
	resp, err := runtime.Dispatch(ctx, s.client, req.Model, bytes.NewReader(raw))
	if err != nil {
		s.logger.Error("upstream dispatch failed", zap.String("provider", runtime.Name), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream dispatch failed"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.Data(resp.StatusCode, "application/json", body)
		return
	}

	if !req.Stream {
		s.handleNonStream(c, runtime, resp.Body)
		return
	}

	s.handleStream(c, runtime, req.Model, resp.Body)
}

func (s *Server) handleStream(c *gin.Context, runtime *Runtime, model string, body io.Reader) {
	ctx := c.Request.Context()

	events := make(chan llmevent.Event, 16)
	go func() {
		if err := runtime.Parse(ctx, body, events); err != nil {
			s.logger.Warn("provider stream parse ended with error",
				zap.String("provider", runtime.Name), zap.Error(err))
		}
	}()

	frames := renderEvents(ctx, events, model, nowUnix())
	withHeartbeat := streaming.Multiplex(ctx, frames)

	wrapped, err := streaming.WrapFirstChunk(ctx, withHeartbeat, runtime.Engine, true, defaultErrorTriggers)
	if err != nil {
		s.logger.Warn("first chunk rejected", zap.String("provider", runtime.Name), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	for frame := range wrapped {
		if frame.IsAudio() {
			c.Writer.Write(frame.Audio)
		} else {
			io.WriteString(c.Writer, frame.Line)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (s *Server) handleNonStream(c *gin.Context, runtime *Runtime, body io.Reader) {
	raw, err := io.ReadAll(body)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read upstream response"})
		return
	}

	switch runtime.Engine {
	case "gemini", "vertexclaude", "vertex-claude", "vertex-gemini":
		// non-streaming Gemini/Vertex responses use the same array-walk
		// aggregation as the plain gemini non-streaming shape.
		result, err := aggregateGemini(raw)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", []byte(result))
	case "azure":
		result, err := aggregateAzure(raw)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", []byte(result))
	default:
		c.Data(http.StatusOK, "application/json", raw)
	}
}

// modelsCreatedTimestamp is the literal timestamp stamped onto every
// model listing entry.
const modelsCreatedTimestamp = 1720524448858

func (s *Server) handleModels(c *gin.Context) {
	seen := make(map[string]bool)
	var models []gin.H

	for _, r := range s.runtimes {
		for id := range r.Models {
			if seen[id] {
				continue
			}
			seen[id] = true
			models = append(models, gin.H{
				"id":       id,
				"object":   "model",
				"created":  modelsCreatedTimestamp,
				"owned_by": "uni-api",
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   models,
	})
}

func aggregateGemini(raw []byte) (string, error) {
	result, err := aggregate.Gemini(raw)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func aggregateAzure(raw []byte) (string, error) {
	result, err := aggregate.Azure(raw)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func nowUnix() int64 {
	return timeNow().Unix()
}
