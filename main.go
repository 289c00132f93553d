package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pearlcafe/barista-agent/agent/controller"
	contractx "github.com/pearlcafe/barista-agent/agent/contract"
	"github.com/pearlcafe/barista-agent/agent/eventing/webhook"
	"github.com/pearlcafe/barista-agent/agent/oracle"
	shopx "github.com/pearlcafe/barista-agent/agent/shop"
	statex "github.com/pearlcafe/barista-agent/agent/state"
	toolx "github.com/pearlcafe/barista-agent/agent/tool"
	configx "github.com/pearlcafe/barista-agent/pkg/config"
	_ "github.com/pearlcafe/barista-agent/pkg/logger/autoload"
	openrouterx "github.com/pearlcafe/barista-agent/pkg/openrouter"
	qstashx "github.com/pearlcafe/barista-agent/pkg/qstash"
)

type AppConfig struct {
	SessionID     string `envconfig:"SESSION_ID" split_words:"true"`
	CustomerID    string `envconfig:"CUSTOMER_ID" split_words:"true" default:"single_coffee_customer"`
	MaxIterations int    `envconfig:"MAX_ITERATIONS" split_words:"true" default:"50"`
	EventWebhook  string `envconfig:"EVENT_WEBHOOK" split_words:"true"`
	// TurnStore selects the checkpoint backend: "postgres" or "redis".
	TurnStore string `envconfig:"TURN_STORE" split_words:"true" default:"postgres"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")

	dbCfg := configx.MustNew[shopx.DatabaseConfig]("DB")
	db, err := shopx.OpenDB(*dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	shopStore, err := shopx.NewPostgresStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("build shop store")
	}
	if err := shopStore.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("initialize shop store")
	}

	var turnStore statex.Store
	switch strings.ToLower(strings.TrimSpace(appCfg.TurnStore)) {
	case "redis":
		redisCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		turnStore, err = statex.NewUpstashRedisStore(*redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("build turn store")
		}
	default:
		pgStore, err := statex.NewPostgresStore(db)
		if err != nil {
			log.Fatal().Err(err).Msg("build turn store")
		}
		if err := pgStore.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("initialize turn store")
		}
		turnStore = pgStore
	}

	registry, err := toolx.NewRegistry(shopStore)
	if err != nil {
		log.Fatal().Err(err).Msg("build action registry")
	}

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	openRouterClient := openrouterx.NewClient(*openRouterCfg)
	if openRouterClient == nil {
		log.Fatal().Msg("initialize openrouter client")
	}
	if err := openrouterx.CheckModel(ctx, openRouterClient, openRouterCfg.Model); err != nil {
		log.Fatal().Err(err).Msg("verify openrouter model")
	}

	barista, err := oracle.New(ctx, openRouterCfg, registry.Infos())
	if err != nil {
		log.Fatal().Err(err).Msg("build oracle")
	}

	var events contractx.EventSink = consoleSink{}
	if destination := strings.TrimSpace(appCfg.EventWebhook); destination != "" {
		qstashCfg := configx.MustNew[qstashx.Config]("QSTASH")
		sink, err := webhook.New(qstashx.MustNew(*qstashCfg), webhook.Config{Destination: destination})
		if err != nil {
			log.Fatal().Err(err).Msg("build webhook sink")
		}
		events = sink
	}

	ctrl, err := controller.New(turnStore, barista, registry, events, controller.Config{
		CustomerID:    appCfg.CustomerID,
		MaxIterations: appCfg.MaxIterations,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build controller")
	}

	sessionID := strings.TrimSpace(appCfg.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log.Info().Str("session_id", sessionID).Msg("barista agent ready")

	fmt.Println("Welcome to Pearl Cafe! Ask about the menu or place an order. Ctrl-D to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		reply, err := ctrl.RunTurn(ctx, sessionID, text)
		if err != nil {
			log.Error().Err(err).Msg("turn failed")
			fmt.Println("barista> Sorry, I could not complete that request. Please try again.")
			continue
		}
		fmt.Printf("barista> %s\n", reply)
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read input")
	}
}

// consoleSink mirrors each step transition as a short status line.
type consoleSink struct{}

func (consoleSink) Publish(_ context.Context, ev contractx.Event) error {
	switch ev.Type {
	case contractx.EventTypeReasoning:
		fmt.Println("  [thinking...]")
	case contractx.EventTypeActionResult:
		fmt.Printf("  [%s]\n", actionLabel(ev.Action))
	case contractx.EventTypeTurnFailed:
		fmt.Println("  [something went wrong]")
	}
	return nil
}

func actionLabel(action string) string {
	switch action {
	case toolx.ActionGetMenuItems:
		return "searching the menu..."
	case toolx.ActionGetItemDetails:
		return "looking up item details..."
	case toolx.ActionPlaceOrder:
		return "recording your order..."
	case toolx.ActionGetOrderStatus:
		return "checking order status..."
	case toolx.ActionCancelOrder:
		return "cancelling the order..."
	default:
		return "running " + action + "..."
	}
}
