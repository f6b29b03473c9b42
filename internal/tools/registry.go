package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lumatrade/council/internal/config"
	"github.com/lumatrade/council/internal/dataflows"
)

// ToolError is a failed collaborator call. It is recorded inline in
// the requesting analyst's brief and never escalated to a run failure.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Registry holds the external data-retrieval tools offered to analyst
// roles. With online tools disabled it offers nothing and fails every
// fetch, which analysts absorb as missing data.
type Registry struct {
	online bool
	log    *zap.Logger
	tools  map[string]tool.InvokableTool
	infos  []*schema.ToolInfo
}

func NewRegistry(cfg *config.Config, log *zap.Logger) (*Registry, error) {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		online: cfg.OnlineTools,
		log:    log,
		tools:  make(map[string]tool.InvokableTool),
	}

	yahoo := dataflows.NewYahooFinanceClient(cfg.DataCacheDir, cfg.CacheEnabled)
	news := dataflows.NewNewsClient(cfg.DataCacheDir, cfg.CacheEnabled)

	for _, t := range []tool.InvokableTool{
		newQuoteTool(yahoo),
		newMarketDataTool(yahoo),
		newCompanyNewsTool(news),
	} {
		info, err := t.Info(context.Background())
		if err != nil {
			return nil, errors.Wrap(err, "tool info")
		}
		r.tools[info.Name] = t
		r.infos = append(r.infos, info)
	}
	return r, nil
}

// Infos lists the tools available for function calling; nil when
// online tools are disabled so models are never offered them.
func (r *Registry) Infos() []*schema.ToolInfo {
	if !r.online {
		return nil
	}
	return r.infos
}

// Fetch executes one named tool call with JSON-encoded args. Failures
// come back as *ToolError for inline recording.
func (r *Registry) Fetch(ctx context.Context, name, argsJSON string) (string, error) {
	if !r.online {
		return "", &ToolError{Tool: name, Err: errors.New("online tools are disabled")}
	}
	t, ok := r.tools[name]
	if !ok {
		return "", &ToolError{Tool: name, Err: errors.Errorf("unknown tool %q", name)}
	}

	out, err := t.InvokableRun(ctx, argsJSON)
	if err != nil {
		r.log.Warn("tool call failed", zap.String("tool", name), zap.Error(err))
		return "", &ToolError{Tool: name, Err: err}
	}
	return out, nil
}
