// main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/popspot/ragengine"
	"github.com/popspot/ragengine/internal/adapters"
	"github.com/popspot/ragengine/internal/cache"
	"github.com/popspot/ragengine/internal/catalog"
	"github.com/popspot/ragengine/internal/chatstore"
	"github.com/popspot/ragengine/internal/classifier"
	"github.com/popspot/ragengine/internal/executor"
	"github.com/popspot/ragengine/internal/planner"
	"github.com/popspot/ragengine/internal/statushub"
	"github.com/popspot/ragengine/internal/tools"
)

type chatTurnInput struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

type chatTurnOutput struct {
	ExecutionID string `json:"execution_id"`
	Answer      string `json:"answer"`
}

func main() {
	ctx := context.Background()

	// Ensure GEMINI_API_KEY environment variable is set
	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal("GEMINI_API_KEY environment variable not set.")
	}

	g, err := genkit.Init(ctx,
		genkit.WithPlugins(&googlegenai.GoogleAI{}),
		genkit.WithDefaultModel("googleai/gemini-2.0-flash"),
	)
	if err != nil {
		log.Fatal("Genkit initialization failed: ", err)
	}

	// Strategy catalog, optionally adjusted by an overlay file.
	var overlay *catalog.Overlay
	if path := os.Getenv("STRATEGY_OVERLAY"); path != "" {
		overlay, err = catalog.LoadAndValidateOverlay(path)
		if err != nil {
			log.Fatal("Strategy overlay failed to load: ", err)
		}
	}
	registry, err := catalog.NewBuiltinRegistry(overlay)
	if err != nil {
		log.Fatal("Strategy registry setup failed: ", err)
	}

	caller, err := adapters.NewGenkitCaller(g, adapters.WithMaxTurns(5))
	if err != nil {
		log.Fatal("Model caller setup failed: ", err)
	}
	for _, tool := range tools.SetupTools() {
		caller.RegisterTool(tool)
	}

	hub := statushub.NewHub()
	defer hub.Close()

	clf, err := classifier.New(caller, registry)
	if err != nil {
		log.Fatal("Classifier setup failed: ", err)
	}
	pln, err := planner.New(caller, registry,
		planner.WithCache(cache.NewInMemoryCache(10*time.Minute)))
	if err != nil {
		log.Fatal("Planner setup failed: ", err)
	}
	exec, err := executor.New(caller, registry,
		executor.WithHub(hub),
		executor.WithStepTimeout(60*time.Second),
	)
	if err != nil {
		log.Fatal("Executor setup failed: ", err)
	}

	engine, err := ragengine.New(
		ragengine.WithClassifier(clf),
		ragengine.WithPlanner(pln),
		ragengine.WithExecutor(exec),
		ragengine.WithRegistry(registry),
		ragengine.WithChatStore(chatstore.NewFileStore("chats.json", &chatstore.StdLogger{})),
		ragengine.WithStatusHub(hub),
	)
	if err != nil {
		log.Fatal("Engine setup failed: ", err)
	}

	genkit.DefineFlow(g, "chatTurn",
		func(ctx context.Context, input *chatTurnInput) (*chatTurnOutput, error) {
			executionID, err := engine.ProcessAsync(ctx, input.ChatID, input.Message)
			if err != nil {
				return nil, err
			}
			go printStatusStream(hub, executionID)

			result, err := waitForTurn(ctx, engine, executionID)
			if err != nil {
				return nil, err
			}
			return &chatTurnOutput{ExecutionID: executionID, Answer: result.Answer}, nil
		})

	genkit.DefineFlow(g, "chatTitle",
		func(ctx context.Context, message string) (string, error) {
			return engine.GenerateTitle(ctx, message)
		})

	runDemo(ctx, engine, hub)
}

// runDemo drives one conversation turn end to end so the binary is usable
// without the Genkit dev UI.
func runDemo(ctx context.Context, engine *ragengine.Engine, hub *statushub.Hub) {
	const chatID = "demo-chat"
	const message = "Where in Seoul should a beauty brand run a two-week pop-up, and what would a venue cost?"

	title, err := engine.GenerateTitle(ctx, message)
	if err != nil {
		log.Printf("Title generation failed: %v", err)
	} else {
		fmt.Printf("Conversation title: %s\n", title)
	}

	executionID, err := engine.ProcessAsync(ctx, chatID, message)
	if err != nil {
		log.Fatal("Turn start failed: ", err)
	}
	printStatusStream(hub, executionID)

	result, err := waitForTurn(ctx, engine, executionID)
	if err != nil {
		log.Fatal("Turn failed: ", err)
	}
	fmt.Printf("\nAnswer:\n%s\n", result.Answer)
}

// printStatusStream subscribes to an execution and prints each event as a
// JSON line until the stream closes.
func printStatusStream(hub *statushub.Hub, executionID string) {
	events, cancel, err := hub.Subscribe(executionID)
	if err != nil {
		log.Printf("Status subscribe failed: %v", err)
		return
	}
	defer cancel()

	for event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			continue
		}
		fmt.Println(string(line))
		if event.Phase == statushub.PhaseClosed {
			return
		}
	}
}

// waitForTurn polls an async turn until it reaches a terminal phase.
func waitForTurn(ctx context.Context, engine *ragengine.Engine, executionID string) (*ragengine.TurnResult, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			status, err := engine.GetTurnStatus(executionID)
			if err != nil {
				return nil, err
			}
			if !status.IsComplete && !status.HasError && status.CurrentPhase != ragengine.PhaseCancelled {
				continue
			}
			return engine.GetTurnResult(executionID)
		}
	}
}
