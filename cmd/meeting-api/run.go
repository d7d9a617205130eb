package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/kubev2v/meeting-intelligence/internal/api_server"
	"github.com/kubev2v/meeting-intelligence/internal/config"
	"github.com/kubev2v/meeting-intelligence/internal/events"
	handlers "github.com/kubev2v/meeting-intelligence/internal/handlers/v1alpha1"
	"github.com/kubev2v/meeting-intelligence/internal/knowledge"
	"github.com/kubev2v/meeting-intelligence/internal/processor"
	"github.com/kubev2v/meeting-intelligence/internal/processor/openai"
	"github.com/kubev2v/meeting-intelligence/internal/service"
	"github.com/kubev2v/meeting-intelligence/internal/storage"
	"github.com/kubev2v/meeting-intelligence/internal/store"
	"github.com/kubev2v/meeting-intelligence/internal/store/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the meeting intelligence api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}

		undo := initLogger(cfg)
		defer undo()

		zap.S().Info("starting api service")
		defer zap.S().Info("api service stopped")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		zap.S().Info("initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}
		s := store.NewStore(db)
		defer s.Close()

		if err := migrate(ctx, cfg, s, db); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}

		gateway, err := newGateway(ctx, cfg)
		if err != nil {
			return err
		}

		p := cfg.Service.Processing
		client := openai.NewClient(p.OpenAIAPIKey, openai.WithBaseURL(p.OpenAIBaseURL), openai.WithMaxRetries(p.OpenAIMaxRetries))

		index, err := knowledge.NewIndex(knowledge.Config{
			PersistPath: cfg.Service.Knowledge.PersistPath,
			Collection:  cfg.Service.Knowledge.Collection,
			ChunkSize:   cfg.Service.Knowledge.ChunkSize,
		}, openai.NewEmbedder(client, cfg.Service.Knowledge.EmbeddingModel).Embed)
		if err != nil {
			return fmt.Errorf("opening knowledge index: %w", err)
		}

		producer := newEventProducer(cfg)
		defer func() { _ = producer.Close() }()

		h := newServiceHandler(cfg, client, s, gateway, index, producer)

		apiListener, err := newListener(cfg.Service.Address)
		if err != nil {
			return fmt.Errorf("creating listener: %w", err)
		}
		metricsListener, err := newListener(cfg.Service.MetricsAddress)
		if err != nil {
			return fmt.Errorf("creating metrics listener: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return apiserver.New(cfg, h, apiListener).Run(gctx)
		})
		g.Go(func() error {
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, metricsListener).Run(gctx)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func newGateway(ctx context.Context, cfg *config.Config) (*storage.MinioGateway, error) {
	s3 := cfg.Service.S3
	gateway, err := storage.NewMinioGateway(
		storage.WithEndpoint(s3.Endpoint),
		storage.WithRegion(s3.Region),
		storage.WithBucket(s3.Bucket),
		storage.WithAccessKey(s3.AccessKey),
		storage.WithSecretKey(s3.SecretKey),
		storage.WithSSL(s3.UseSSL),
		storage.WithPublicBaseURL(s3.PublicBaseURL),
		storage.WithPresignExpiry(cfg.Service.Upload.PresignExpiry),
	)
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	if err := gateway.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("preparing bucket %s: %w", s3.Bucket, err)
	}
	return gateway, nil
}

func newEventProducer(cfg *config.Config) *events.EventProducer {
	opts := []events.ProducerOptions{events.WithSource(cfg.Service.BaseUrl)}
	if cfg.Service.Events.Topic != "" {
		opts = append(opts, events.WithOutputTopic(cfg.Service.Events.Topic))
	}
	return events.NewEventProducer(events.NewStdoutWriter(zap.L()), opts...)
}

func newServiceHandler(cfg *config.Config, client *openai.Client, s store.Store, gateway *storage.MinioGateway, index *knowledge.Index, producer *events.EventProducer) *handlers.ServiceHandler {
	p := cfg.Service.Processing
	k := cfg.Service.Knowledge

	pipeline := service.NewPipeline(s, gateway, map[model.RecordKind]service.KindProcessing{
		model.KindTranscription: {
			Processor: processor.Chain{
				openai.NewTranscriber(client, p.TranscriptionModel, p.TranscriptionParams),
				index.Indexer(),
			},
			Timeout: p.TranscriptionTimeout,
		},
		model.KindDocument: {
			Processor: processor.Chain{
				processor.NewPDFInspector(),
				openai.NewDocumentUploader(client, p.VectorStoreID),
			},
			Timeout: p.DocumentTimeout,
		},
	}).WithPublisher(producer)

	return handlers.NewServiceHandler(
		service.NewUploadService(s, gateway, service.NewUploadPolicy(cfg.Service.Upload), cfg.Service.BaseUrl, p.FetchTimeout).WithPublisher(producer),
		service.NewRecordService(s, gateway, index).WithPublisher(producer),
		pipeline,
		service.NewSummaryService(s, openai.NewSummarizer(client, p.SummaryModel), p.SummaryTimeout).WithIndexer(index),
		service.NewProductTermService(s),
		service.NewKnowledgeService(s, index).WithResponder(openai.NewAssistant(client, k.ChatModel), k.ChatTimeout),
	)
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
