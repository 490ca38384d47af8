package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/federatedforum/fedcore/internal/announce"
	"github.com/federatedforum/fedcore/internal/cache"
	"github.com/federatedforum/fedcore/internal/config"
	"github.com/federatedforum/fedcore/internal/db"
	"github.com/federatedforum/fedcore/internal/db/bundb"
	"github.com/federatedforum/fedcore/internal/dereferencing"
	"github.com/federatedforum/fedcore/internal/dispatch"
	"github.com/federatedforum/fedcore/internal/gtsmodel"
	"github.com/federatedforum/fedcore/internal/httpclient"
	"github.com/federatedforum/fedcore/internal/httpsig"
	"github.com/federatedforum/fedcore/internal/id"
	"github.com/federatedforum/fedcore/internal/inbox"
	"github.com/federatedforum/fedcore/internal/log"
	"github.com/federatedforum/fedcore/internal/send"
	"github.com/federatedforum/fedcore/internal/urlfilter"
)

// app holds every long-lived dependency a subcommand wires together.
// Built once by newApp, torn down by app.Close.
type app struct {
	cfg      *config.Config
	store    db.DB
	client   *httpclient.Client
	resolver *dereferencing.Resolver
	dispatch *dispatch.Processor
	inbox    *inbox.Manager
	sender   *send.Manager
	site     *gtsmodel.Actor

	// runID disambiguates this process's log lines from any sibling
	// process sharding the same process_count fleet (§4.6); unlike the
	// ULIDs internal/id hands out for business-entity rows, this only
	// needs to be unique for the life of one process, never sorted.
	runID string

	sqlDB *sql.DB
}

// shardOverride lets a subcommand's own flags (e.g. send-manager's
// --process-count/--process-index) take priority over whatever a
// config file says, without reconstructing the send.Manager after the
// fact — its Config is copied in at construction and unexported.
type shardOverride struct {
	count, index int
}

func newApp(ctx context.Context, shard *shardOverride) (*app, error) {
	runID := uuid.NewString()
	log.Infof("federation: starting process run %s", runID)

	cfg, err := config.Load(cfgSearchPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config: host must be set")
	}
	if shard != nil && shard.count > 0 {
		cfg.ProcessCount = shard.count
		cfg.ProcessIndex = shard.index
	}

	sqlDB, dialect, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var bunDB *bun.DB
	if dialect == bundb.DialectPostgres {
		bunDB = bun.NewDB(sqlDB, pgdialect.New())
	} else {
		bunDB = bun.NewDB(sqlDB, sqlitedialect.New())
	}
	conn := bundb.WrapConn(bunDB, dialect)
	store := bundb.New(conn, cache.NewActorCache(), cache.NewContentCache())

	client := httpclient.New(httpclient.Config{
		MaxOpenConns:    100,
		MaxIdleConns:    100,
		MaxBodySize:     5 << 20,
		Timeout:         cfg.HTTPClientTimeout,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	})

	site, err := ensureSiteActor(ctx, store, cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("bootstrap site actor: %w", err)
	}

	signer, err := httpsig.NewSigner(site.URI+"#main-key", site.PrivateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("build resolver signer: %w", err)
	}
	if cfg.AllowUnauthedLookup {
		signer = nil
	}

	filter := urlfilter.New(cfg.AllowedHosts, cfg.BlockedHosts, cfg.RequireHTTPS)
	resolver := dereferencing.New(store, client, filter, signer, cfg.Host, cfg.ActorStaleAfter)
	announcer := announce.New(store, filter, cfg.Host, cfg.DeadInstanceThreshold)

	sendMgr := send.New(send.Config{
		ProcessCount:           cfg.ProcessCount,
		ProcessIndex:           cfg.ProcessIndex,
		RecheckInterval:        cfg.InstanceRecheckInterval,
		BatchSize:              cfg.SendBatchSize,
		PerInstanceConcurrency: cfg.SendPerInstanceConcurrency,
		BackoffBase:            cfg.BackoffBase,
		BackoffCap:             cfg.BackoffCap,
		DeadThreshold:          cfg.DeadInstanceThreshold,
	}, store, client, cfg.Host)

	proc := dispatch.New(store, resolver, announcer, sendMgr, cfg.Host)

	resolveKey := func(ctx context.Context, keyID string) (string, string, error) {
		actorURI := stripFragment(keyID)
		actor, err := resolver.Dereference(ctx, actorURI)
		if err != nil {
			return "", "", err
		}
		return actor.PublicKeyPEM, actor.URI, nil
	}

	inboxMgr := inbox.New(inbox.Config{
		ReceiveDelay:      cfg.ReceiveDelay,
		HighWaterMark:     cfg.InboxHighWaterMark,
		WorkerCount:       cfg.InboxWorkerCount,
		MaxBodyBytes:      cfg.InboxMaxBodyBytes,
		ClockSkew:         cfg.ClockSkew,
		WorkerExitTimeout: cfg.WorkerExitTimeout,
	}, store, resolveKey, proc.Dispatch)

	return &app{
		cfg:      cfg,
		store:    store,
		client:   client,
		resolver: resolver,
		dispatch: proc,
		inbox:    inboxMgr,
		sender:   sendMgr,
		site:     site,
		runID:    runID,
		sqlDB:    sqlDB,
	}, nil
}

func (a *app) Close() error {
	return a.sqlDB.Close()
}

func openDB(cfg *config.Config) (*sql.DB, bundb.Dialect, error) {
	switch cfg.DBDialect {
	case "postgres":
		sqlDB, err := sql.Open("pgx", cfg.DBDSN)
		if err != nil {
			return nil, bundb.DialectPostgres, err
		}
		return sqlDB, bundb.DialectPostgres, nil
	case "sqlite", "":
		sqlDB, err := sql.Open("sqlite3", cfg.DBDSN)
		if err != nil {
			return nil, bundb.DialectSQLite, err
		}
		return sqlDB, bundb.DialectSQLite, nil
	default:
		return nil, bundb.DialectSQLite, fmt.Errorf("unknown db_dialect %q", cfg.DBDialect)
	}
}

func stripFragment(uri string) string {
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '#' {
			return uri[:i]
		}
	}
	return uri
}

// ensureSiteActor loads (or, on first run, creates) the Application
// actor that represents this node itself: the signer used for
// outbound actor-fetch GETs, mirroring the teacher's instance actor.
func ensureSiteActor(ctx context.Context, store db.DB, host string) (*gtsmodel.Actor, error) {
	actor, err := store.GetActorByUsernameDomain(ctx, host, host)
	if err == nil {
		return actor, nil
	}

	privPEM, pubPEM, err := httpsig.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generate site actor keypair: %w", err)
	}

	inst, err := ensureLocalInstance(ctx, store, host)
	if err != nil {
		return nil, err
	}

	actor = &gtsmodel.Actor{
		ID:            id.New(),
		Type:          gtsmodel.ActorSite,
		URI:           "https://" + host + "/fedcore-actor",
		InstanceID:    inst.ID,
		Username:      host,
		Inbox:         "https://" + host + "/fedcore-actor/inbox",
		SharedInbox:   "https://" + host + "/inbox",
		Outbox:        "https://" + host + "/fedcore-actor/outbox",
		PublicKeyPEM:  pubPEM,
		PrivateKeyPEM: privPEM,
		LastRefreshedAt: time.Now().UTC(),
		Local:         true,
	}
	if err := store.PutActor(ctx, actor); err != nil {
		return nil, err
	}
	return actor, nil
}

func ensureLocalInstance(ctx context.Context, store db.DB, host string) (*gtsmodel.Instance, error) {
	inst, err := store.GetInstanceByDomain(ctx, host)
	if err == nil {
		return inst, nil
	}
	inst = &gtsmodel.Instance{
		ID:       id.New(),
		Domain:   host,
		LastSeen: time.Now().UTC(),
		Allowed:  true,
	}
	if err := store.PutInstance(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}
