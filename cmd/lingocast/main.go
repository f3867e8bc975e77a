package main

import (
	"context"
	"log"
	"net/http"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"

	lcconfig "github.com/lingocast/lingocast/config"
	"github.com/lingocast/lingocast/internal/audio"
	"github.com/lingocast/lingocast/internal/gateway"
	"github.com/lingocast/lingocast/internal/pipeline"
	"github.com/lingocast/lingocast/internal/speech/engine"
	"github.com/lingocast/lingocast/internal/speech/lang"
	"github.com/lingocast/lingocast/internal/speech/registry"
	"github.com/lingocast/lingocast/pkg/events"

	// Register audio and engine backends via init().
	_ "github.com/lingocast/lingocast/internal/audio/sources/netstream"
	_ "github.com/lingocast/lingocast/internal/audio/sources/tone"
	_ "github.com/lingocast/lingocast/internal/speech/backends/nllbserve"
	_ "github.com/lingocast/lingocast/internal/speech/backends/stub"
	_ "github.com/lingocast/lingocast/internal/speech/backends/whisperd"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[lcconfig.ServiceConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("lingocast"),
		frame.WithRegisterPublisher(eventRef, eventURL),
		frame.WithWorkerPoolOptions(
			workerpool.WithPoolCount(cfg.WorkerPoolCount),
			workerpool.WithSinglePoolCapacity(cfg.WorkerPoolCapacity),
		),
	)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	engineConfig := cfg.EngineConfig()

	source, err := audio.Sources.Create(cfg.AudioBackend, engineConfig)
	if err != nil {
		log.Fatalf("creating audio source %q: %v", cfg.AudioBackend, err)
	}
	recognizer, err := registry.Recognizers.Create(cfg.ASRBackend, engineConfig)
	if err != nil {
		log.Fatalf("creating recognizer %q: %v", cfg.ASRBackend, err)
	}
	translator, err := registry.Translators.Create(cfg.MTBackend, engineConfig)
	if err != nil {
		log.Fatalf("creating translator %q: %v", cfg.MTBackend, err)
	}

	catalog := lang.NewCatalog()
	loader := lang.NewLoader(cfg.LanguageDir, catalog)
	if err := loader.LoadAll(); err != nil {
		log.Printf("warning: loading language catalogs: %v", err)
	}
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		if err := loader.WatchAndReload(watchDone); err != nil {
			log.Printf("warning: language catalog watch: %v", err)
		}
	}()

	broadcaster := events.NewBroadcaster(srv.QueueManager(), eventRef, cfg.SubscriberQueueDepth)

	ctrl := pipeline.NewController(cfg.PipelineSettings(), source, recognizer, translator,
		catalog, pool, broadcaster, engine.ModelInfo{Name: cfg.ModelName})

	mux := http.NewServeMux()
	gateway.NewHandler(ctrl).RegisterRoutes(mux)
	mux.Handle("GET /ws", gateway.NewWSHandler(broadcaster, ctrl))

	srv.Init(ctx,
		frame.WithHTTPHandler(gateway.H2CHandler(mux)),
	)

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}
