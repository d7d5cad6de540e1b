// container.go
package main

import (
	"context"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/ai/embedding"
	aiopenai "github.com/IAMSamuelRodda/zero-agent-sub003/pkg/ai/providers/openai"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/auth"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/docs"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/docs/docsapi"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx/fsxlocal"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/fsx/fsxs3"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/logx"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memoryapi"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memoryinfra"
	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/memory/memorysrv"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Container holds all application dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure
	Provider   memory.Provider
	FileSystem fsx.FileSystem
	S3Client   *s3.Client

	// Domain Services
	ConversationService *memorysrv.ConversationService
	MemoryService       *memorysrv.MemoryService
	CredentialService   *memorysrv.CredentialService
	DocumentService     *docs.Service
	TokenService        auth.TokenService

	// API Handlers
	SessionHandlers    *memoryapi.SessionHandlers
	MemoryHandlers     *memoryapi.MemoryHandlers
	ConnectionHandlers *memoryapi.ConnectionHandlers
	DocumentHandlers   *docsapi.DocumentHandlers

	// Middleware
	AuthMiddleware *auth.TokenMiddleware
}

// NewContainer initializes the dependency injection container
func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing dependency container...")

	c := &Container{
		Config: cfg,
	}

	c.initStorage()
	c.initFileStorage()
	c.initServices()

	logx.Info("✅ Container initialized successfully")
	return c
}

func (c *Container) initStorage() {
	provider, err := memoryinfra.NewProvider(c.Config.Storage)
	if err != nil {
		logx.Fatalf("Failed to build storage provider: %v", err)
	}

	if err := provider.Connect(context.Background()); err != nil {
		logx.Fatalf("Failed to connect storage provider: %v", err)
	}

	c.Provider = provider
	logx.Infof("✅ Storage provider connected (provider: %s)", c.Config.Storage.Provider)
}

func (c *Container) initFileStorage() {
	docsCfg := c.Config.Documents

	switch docsCfg.StorageMode {
	case "s3":
		cfg, err := awsConfig.LoadDefaultConfig(context.TODO(), awsConfig.WithRegion(docsCfg.AWSRegion))
		if err != nil {
			logx.Fatalf("Unable to load AWS SDK config: %v", err)
		}
		c.S3Client = s3.NewFromConfig(cfg)
		c.FileSystem = fsxs3.NewS3FileSystem(c.S3Client, docsCfg.AWSBucket, "")
		logx.Infof("✅ S3 file system configured (bucket: %s, region: %s)", docsCfg.AWSBucket, docsCfg.AWSRegion)

	case "local":
		localFS, err := fsxlocal.NewLocalFileSystem(docsCfg.LocalDir)
		if err != nil {
			logx.Fatalf("Failed to initialize local file system: %v", err)
		}
		c.FileSystem = localFS
		logx.Infof("✅ Local file system configured (path: %s)", localFS.GetBasePath())

	default:
		logx.Fatalf("Unknown STORAGE_MODE: %s (use 'local' or 's3')", docsCfg.StorageMode)
	}
}

func (c *Container) initServices() {
	logx.Info("🗄️  Initializing services and handlers...")

	// Embedding enrichment is optional; without it memories store fine
	// but similarity search needs caller-provided vectors
	var embedder memorysrv.Embedder
	if c.Config.AI.Embedding.Enabled {
		openaiProvider := aiopenai.NewOpenAIProvider(c.Config.AI.Embedding.APIKey)
		embedder = embedding.NewService(openaiProvider, c.Config.AI.Embedding)
		logx.Infof("✅ Embedding enrichment enabled (model: %s)", c.Config.AI.Embedding.Model)
	} else {
		logx.Warn("⚠️  Embedding enrichment disabled (EMBEDDING_ENABLED=false)")
	}

	// Token Service
	c.TokenService = auth.NewJWTServiceFromConfig(&c.Config.Auth.JWT)

	// --- Domain Services ---
	c.ConversationService = memorysrv.NewConversationService(c.Provider)
	c.MemoryService = memorysrv.NewMemoryService(c.Provider, embedder)
	c.CredentialService = memorysrv.NewCredentialService(c.Provider)
	c.DocumentService = docs.NewService(c.FileSystem)

	// --- API Handlers ---
	c.SessionHandlers = memoryapi.NewSessionHandlers(c.ConversationService)
	c.MemoryHandlers = memoryapi.NewMemoryHandlers(c.MemoryService)
	c.ConnectionHandlers = memoryapi.NewConnectionHandlers(c.CredentialService)
	c.DocumentHandlers = docsapi.NewDocumentHandlers(c.DocumentService)

	// --- Middleware ---
	c.AuthMiddleware = auth.NewTokenMiddleware(c.TokenService)

	logx.Info("✅ All services and handlers initialized")
}

// Cleanup closes all connections
func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.Provider != nil {
		if err := c.Provider.Disconnect(context.Background()); err != nil {
			logx.Errorf("Error disconnecting storage provider: %v", err)
		} else {
			logx.Info("✅ Storage provider disconnected")
		}
	}

	logx.Info("✅ Cleanup completed")
}
