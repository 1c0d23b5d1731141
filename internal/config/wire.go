// Wiring constructs the process-wide collaborators internal/agentdef.Deps,
// internal/executor.Service, and internal/httpapi.Server need from a parsed
// Config, mirroring the teacher's example/cmd/assistant/main.go "initialize
// the services, wrap them in endpoints" two-stage wiring.
package config

import (
	"context"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/rudi77/taskforge/internal/bus"
	"github.com/rudi77/taskforge/internal/bus/inproc"
	"github.com/rudi77/taskforge/internal/bus/nats"
	"github.com/rudi77/taskforge/internal/liveness"
	"github.com/rudi77/taskforge/internal/modelclient"
	"github.com/rudi77/taskforge/internal/session"
	sessionmem "github.com/rudi77/taskforge/internal/session/memstore"
	sessionmongo "github.com/rudi77/taskforge/internal/session/mongostore"
	"github.com/rudi77/taskforge/internal/toolresult"
	toolresultmem "github.com/rudi77/taskforge/internal/toolresult/memstore"
	toolresultredis "github.com/rudi77/taskforge/internal/toolresult/redisstore"
	"github.com/rudi77/taskforge/internal/workflow"
	workflowtemporal "github.com/rudi77/taskforge/internal/workflow/temporal"
)

// DefaultBusCapacity sizes an inproc.Board's per-subscriber buffer when none is
// configured explicitly.
const DefaultBusCapacity = 256

// roleResolver is the modelclient.RoleResolver built from Models config.
type roleResolver struct {
	defaultProvider string
	clients         map[string]modelclient.Client
	roles           map[string]string
}

// NewRoleResolver builds every configured provider adapter and returns a
// modelclient.RoleResolver resolving ModelsConfig.Roles against them (spec
// §4.14 "logical role -> provider model id").
func (c *Config) NewRoleResolver(ctx context.Context) (modelclient.RoleResolver, error) {
	clients := make(map[string]modelclient.Client, len(c.Models.Providers))
	for name, p := range c.Models.Providers {
		client, err := newProviderClient(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("config: provider %s: %w", name, err)
		}
		clients[name] = client
	}
	return &roleResolver{defaultProvider: c.Models.DefaultProvider, clients: clients, roles: c.Models.Roles}, nil
}

func newProviderClient(ctx context.Context, p ProviderConfig) (modelclient.Client, error) {
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	switch p.Kind {
	case "anthropic":
		return modelclient.NewAnthropicFromAPIKey(p.APIKey, p.DefaultModel, maxTokens)
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return modelclient.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), p.DefaultModel, maxTokens)
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}
}

// Resolve implements modelclient.RoleResolver.
func (r *roleResolver) Resolve(role string) (modelclient.Client, string, error) {
	ref, ok := r.roles[role]
	if !ok {
		ref = role // treat the role itself as a bare model id/"provider:model" reference
	}
	provider, model := splitModelRef(ref, r.defaultProvider)
	client, ok := r.clients[provider]
	if !ok {
		return nil, "", fmt.Errorf("modelclient: no provider configured for role %q (resolved provider %q)", role, provider)
	}
	return client, model, nil
}

// NewSessionStore builds the session.Store selected by Storage.Sessions.
func (c *Config) NewSessionStore(ctx context.Context) (session.Store, error) {
	switch c.Storage.Sessions.Kind {
	case "mongo":
		client, err := mongo.Connect(options.Client().ApplyURI(c.Storage.Sessions.DSN))
		if err != nil {
			return nil, fmt.Errorf("config: connect mongo sessions store: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("config: ping mongo sessions store: %w", err)
		}
		coll := client.Database("taskforge").Collection("sessions")
		return sessionmongo.New(coll), nil
	default:
		return sessionmem.New(), nil
	}
}

// NewToolResultStore builds the toolresult.Store selected by
// Storage.ToolResults.
func (c *Config) NewToolResultStore() (toolresult.Store, error) {
	switch c.Storage.ToolResults.Kind {
	case "redis":
		client, err := newRedisClient(c.Storage.ToolResults.DSN)
		if err != nil {
			return nil, err
		}
		return toolresultredis.New(client, c.Storage.ToolResults.TTL), nil
	default:
		return toolresultmem.New(), nil
	}
}

// NewLivenessStore builds the liveness.HeartbeatStore selected by
// Storage.Liveness.
func (c *Config) NewLivenessStore() (liveness.HeartbeatStore, error) {
	switch c.Storage.Liveness.Kind {
	case "redis":
		client, err := newRedisClient(c.Storage.Liveness.DSN)
		if err != nil {
			return nil, err
		}
		return liveness.NewRedisHeartbeatStore(client, c.Storage.Liveness.TTL), nil
	default:
		return liveness.NewMemStore(), nil
	}
}

// NewWorkflowStore builds the workflow.Store selected by Storage.Workflows.
func (c *Config) NewWorkflowStore() (workflow.Store, error) {
	switch c.Storage.Workflows.Kind {
	case "redis":
		client, err := newRedisClient(c.Storage.Workflows.DSN)
		if err != nil {
			return nil, err
		}
		return workflow.NewRedisStore(client), nil
	default:
		return workflow.NewMemStore(), nil
	}
}

// NewBus builds the general-purpose bus.Bus (plan-mutation pub/sub) selected
// by Storage.Bus. Epic task-claim coordination always uses a dedicated
// inproc.Board regardless of this setting, since bus.TaskBoard's
// read-modify-write claim semantics need a single consistent owner (see
// internal/bus/nats's package doc).
func (c *Config) NewBus() (bus.Bus, error) {
	switch c.Storage.Bus.Kind {
	case "nats":
		return nats.Connect(nats.Config{URL: c.Storage.Bus.DSN})
	default:
		return inproc.New(bus.OverflowBlock, DefaultBusCapacity), nil
	}
}

// NewEpicBoard returns the dedicated inproc.Board epic runs claim tasks
// against (spec §4.11, §4.12).
func (c *Config) NewEpicBoard() bus.TaskBoard {
	return inproc.New(bus.OverflowBlock, DefaultBusCapacity)
}

// NewGateway builds the workflow.Gateway selected by Gateway.Kind. A
// "temporal" gateway dials lazily (the dial itself is deferred to first
// use by the Temporal client), so a misconfigured host only surfaces when
// send_request first fires, matching client.NewLazyClient's own contract.
func (c *Config) NewGateway() (workflow.Gateway, error) {
	switch c.Gateway.Kind {
	case "log":
		return workflow.LogGateway{}, nil
	case "temporal":
		gw, err := workflowtemporal.New(temporalclient.Options{
			HostPort:  c.Gateway.HostPort,
			Namespace: c.Gateway.Namespace,
		})
		if err != nil {
			return nil, fmt.Errorf("config: build temporal gateway: %w", err)
		}
		return gw, nil
	default:
		return workflow.NoopGateway{}, nil
	}
}

func newRedisClient(dsn string) (*redis.Client, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("config: parse redis dsn: %w", err)
	}
	return redis.NewClient(opts), nil
}

// DialTimeout is a timeout value for backend connection attempts; the
// constructors in this file do not apply it.
const DialTimeout = 10 * time.Second
