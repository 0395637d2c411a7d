// Command forge is a line-mode driver for the orchestration engine: it
// wires the provider pipeline, tool registry, compactor and orchestrator
// together and runs one REPL loop over stdin/stdout. It deliberately has no
// TUI; the old bubbletea program the teacher shipped lived in cmd/symb and
// is out of scope here.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"charm.land/lipgloss/v2"

	"github.com/xonecas/forge/internal/compact"
	"github.com/xonecas/forge/internal/config"
	"github.com/xonecas/forge/internal/constants"
	"github.com/xonecas/forge/internal/domain"
	"github.com/xonecas/forge/internal/highlight"
	"github.com/xonecas/forge/internal/mcp"
	"github.com/xonecas/forge/internal/mcptools"
	"github.com/xonecas/forge/internal/orchestrator"
	"github.com/xonecas/forge/internal/policy"
	"github.com/xonecas/forge/internal/provider"
	"github.com/xonecas/forge/internal/registry"
	"github.com/xonecas/forge/internal/shell"
	"github.com/xonecas/forge/internal/snapshot"
	"github.com/xonecas/forge/internal/store"
	"github.com/xonecas/forge/internal/telemetry"
	"github.com/xonecas/forge/internal/toolset"

	_ "modernc.org/sqlite"
	"go.opentelemetry.io/otel/metric/noop"
)

func main() {
	if err := setupFileLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to setup logging: %v\n", err)
	}

	flagConversation := flag.String("c", "", "resume a conversation by ID")
	flagList := flag.Bool("l", false, "list conversations")
	flag.Parse()

	configPath := filepath.Join(".", "config.toml")
	if dataDir, err := config.DataDir(); err == nil {
		dataDirPath := filepath.Join(dataDir, "config.toml")
		if _, err := os.Stat(dataDirPath); err == nil {
			configPath = dataDirPath
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		fmt.Printf("Error loading credentials: %v\n", err)
		os.Exit(1)
	}

	oldRegistry := buildVendorRegistry(cfg, creds)
	providerName, providerCfg := resolveProvider(cfg, oldRegistry)

	// The SubAgent tool still spawns its nested turn against a concrete
	// old-world Provider (see internal/mcptools/subagent.go); the bridge
	// below is the one the orchestrator itself drives.
	subProvider, err := oldRegistry.Create(providerName, providerCfg.Model, provider.Options{Temperature: providerCfg.Temperature})
	if err != nil {
		fmt.Printf("Error creating provider: %v\n", err)
		os.Exit(1)
	}
	defer subProvider.Close()

	bridge := provider.NewBridge(oldRegistry, provider.Options{Temperature: providerCfg.Temperature})
	defer bridge.Close()

	telemetry.Init(noop.Meter{})
	defer telemetry.Global().Shutdown(context.Background())

	dataDir, err := config.EnsureDataDir()
	if err != nil {
		fmt.Printf("Error preparing data dir: %v\n", err)
		os.Exit(1)
	}
	db, err := sql.Open("sqlite", filepath.Join(dataDir, "forge.db"))
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := store.MigrateConversations(db); err != nil {
		fmt.Printf("Error migrating conversations: %v\n", err)
		os.Exit(1)
	}
	conversations := store.NewConversationStore(db)

	if err := snapshot.Migrate(db); err != nil {
		fmt.Printf("Error migrating snapshots: %v\n", err)
		os.Exit(1)
	}
	snapshots := snapshot.New(db)

	webCache := openWebCache(cfg)
	if webCache != nil {
		defer webCache.Close()
	}

	if *flagList {
		listConversations(conversations)
		return
	}

	sh := shell.New("", shell.DefaultBlockFuncs())
	builtin, subAgentSet, proxy := buildTools(sh, webCache, creds, subProvider, snapshots)
	mcpExec, err := newMCPExecutor(context.Background(), proxy)
	if err != nil {
		fmt.Printf("Warning: MCP tool listing failed: %v\n", err)
		mcpExec = &mcpExecutor{proxy: proxy}
	}

	reg := registry.New(builtin, subAgentSet, mcpExec, 60*time.Second)
	reg.Policy = policy.New()
	reg.Confirm = confirmOnStdin

	agents := staticAgentLookup{"default": defaultAgent(providerName, providerCfg.Model)}
	resolver := orchestrator.NewAgentProviderResolver(agents, domain.ProviderID(providerName), domain.ModelID(providerCfg.Model))

	compactor := compact.New(bridge, cwdOrDot())
	hooks := orchestrator.NewDispatcher(
		orchestrator.NewCompactionHook(compactor, domain.ProviderID(providerName)),
		orchestrator.NewTracingHook(),
	)

	sink := newStdoutSink()

	orch := &orchestrator.Orchestrator{
		Provider:      bridge,
		Resolver:      resolver,
		Registry:      reg,
		Hooks:         hooks,
		Conversations: conversations,
		Responses:     sink,
		Titles:        orchestrator.NewTitleGenerator(bridge),
		ChangedFiles:  orchestrator.NewChangedFiles(),
		Env: orchestrator.Environment{
			OS:         runtime.GOOS,
			WorkingDir: cwdOrDot(),
			Shell:      os.Getenv("SHELL"),
		},
		ParallelToolCalls: true,
	}

	conv, err := resolveConversation(*flagConversation, conversations)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	conv.Context.Tools = append(append([]domain.ToolDefinition{}, builtin.Definitions()...), subAgentSet.Definitions()...)

	agent := agents["default"]
	runREPL(context.Background(), orch, agent, conv)
}

// runREPL reads one line at a time from stdin and runs it as a turn,
// printing streamed ChatResponse events to stdout via sink.
func runREPL(ctx context.Context, orch *orchestrator.Orchestrator, agent *domain.Agent, conv *domain.Conversation) {
	fmt.Printf("forge — conversation %s (ctrl-d to exit)\n", conv.ID)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/exit" {
			break
		}
		if err := orch.RunTurn(ctx, agent, conv, domain.Event{Value: line}); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

type staticAgentLookup map[domain.AgentID]*domain.Agent

func (a staticAgentLookup) Agent(id domain.AgentID) (*domain.Agent, bool) {
	agent, ok := a[id]
	return agent, ok
}

func defaultAgent(providerName, model string) *domain.Agent {
	return &domain.Agent{
		ID:                     "default",
		Model:                  domain.ModelID(model),
		Provider:               domain.ProviderID(providerName),
		SystemPrompt:           "You are forge, a terse coding assistant running in {{.Env.WorkingDir}}. Use the available tools to get things done.",
		MaxTurns:               0,
		MaxToolFailuresPerTurn: 3,
		MaxRequestsPerTurn:     25,
	}
}

func cwdOrDot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func resolveConversation(id string, repo domain.ConversationRepository) (*domain.Conversation, error) {
	ctx := context.Background()
	if id != "" {
		conv, err := repo.Get(ctx, domain.ConversationID(id))
		if err != nil {
			return nil, fmt.Errorf("resume conversation %s: %w", id, err)
		}
		return conv, nil
	}
	return &domain.Conversation{
		ID:      domain.ConversationID(newConversationID()),
		Context: &domain.Context{},
	}, nil
}

func listConversations(repo *store.ConversationStore) {
	convs, err := repo.List(context.Background(), 50)
	if err != nil {
		fmt.Printf("Error listing conversations: %v\n", err)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No conversations found")
		return
	}
	for _, c := range convs {
		fmt.Printf("%s  %s  %s\n", c.ID, c.Metadata.UpdatedAt.Format("2006-01-02 15:04"), c.Title)
	}
}

// stdoutSink implements domain.ChatResponseChannel by printing each
// response to stdout, styled with lipgloss the way the teacher's TUI
// themed its output. Read results are syntax-highlighted via Chroma before
// printing, the same theme the teacher's editor view used.
type stdoutSink struct {
	style lipgloss.Style
	theme string
	bgHex string

	mu      sync.Mutex
	pending map[string]string // tool CallID -> file path, for Read calls in flight
}

func newStdoutSink() *stdoutSink {
	theme := constants.SyntaxTheme
	return &stdoutSink{
		style:   lipgloss.NewStyle(),
		theme:   theme,
		bgHex:   highlight.ThemeBg(theme),
		pending: make(map[string]string),
	}
}

func (s *stdoutSink) Send(ctx context.Context, resp domain.ChatResponse) bool {
	switch r := resp.(type) {
	case domain.TaskMessage:
		fmt.Print(r.Content)
	case domain.TaskReasoning:
		fmt.Print(s.style.Faint(true).Render(r.Content))
	case domain.TaskComplete:
		fmt.Println()
	case domain.ToolCallStart:
		fmt.Printf("\n[%s]\n", r.Call.Name)
		if r.Call.Name == "Read" {
			s.trackRead(r.Call)
		}
	case domain.ToolCallEnd:
		if r.Result.Output.IsError {
			fmt.Printf("[%s failed]\n", r.Result.Name)
			break
		}
		if path, ok := s.takeRead(r.Result.CallID); ok {
			s.printHighlighted(path, r.Result.Output)
		}
	case domain.RetryAttempt:
		fmt.Printf("\n(retrying after %v: %v)\n", r.Duration, r.Cause)
	case domain.Interrupt:
		fmt.Printf("\n(turn stopped: budget %d reached)\n", r.Reason.Limit)
	}
	return true
}

func (s *stdoutSink) trackRead(call domain.ToolCallFull) {
	var args struct {
		File string `json:"file"`
	}
	if len(call.Arguments) == 0 {
		return
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil || args.File == "" {
		return
	}
	callID := ""
	if call.CallID != nil {
		callID = *call.CallID
	}
	s.mu.Lock()
	s.pending[callID] = args.File
	s.mu.Unlock()
}

func (s *stdoutSink) takeRead(callID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.pending[callID]
	delete(s.pending, callID)
	return path, ok
}

func (s *stdoutSink) printHighlighted(path string, out domain.ToolOutput) {
	lang := lexerForPath(path)
	for _, v := range out.Values {
		if v.Kind != domain.ToolOutputText {
			continue
		}
		if lang == "" {
			fmt.Println(v.Text)
			continue
		}
		fmt.Println(highlight.Highlight(v.Text, lang, s.theme, s.bgHex))
	}
}

// lexerForPath maps a file extension onto a Chroma lexer name. Unknown
// extensions fall back to plain, unhighlighted output.
func lexerForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".json":
		return "json"
	case ".md":
		return "markdown"
	case ".sh", ".bash":
		return "bash"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".sql":
		return "sql"
	default:
		return ""
	}
}

func setupFileLogging() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return err
	}
	file, err := os.OpenFile(filepath.Join(logDir, "forge.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	log.Logger = log.Output(file)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	return nil
}

func openWebCache(cfg *config.Config) *store.Cache {
	cacheDir, err := config.EnsureDataDir()
	if err != nil {
		fmt.Printf("Warning: cache dir failed: %v\n", err)
		return nil
	}
	cacheTTL := time.Duration(cfg.Cache.CacheTTLOrDefault()) * time.Hour
	cache, err := store.Open(filepath.Join(cacheDir, "cache.db"), cacheTTL)
	if err != nil {
		fmt.Printf("Warning: cache open failed: %v\n", err)
		return nil
	}
	return cache
}

// confirmOnStdin asks the user to approve a pending operation the policy
// engine marked PolicyConfirm. It blocks on stdin, so it is only safe to use
// from the single-threaded REPL loop this driver runs.
func confirmOnStdin(_ context.Context, op domain.Operation) bool {
	subject := op.Path
	if op.Command != "" {
		subject = op.Command
	}
	if op.URL != "" {
		subject = op.URL
	}
	kinds := map[domain.OperationKind]string{
		domain.OpRead: "read", domain.OpWrite: "write",
		domain.OpExecute: "execute", domain.OpFetch: "fetch",
	}
	fmt.Printf("\nallow this operation? %s %s [y/N] ", kinds[op.Kind], subject)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

// askOnStdin prints a Followup question and blocks on stdin for the answer,
// mirroring confirmOnStdin's interactive pattern. Only safe from the
// single-threaded REPL loop this driver runs.
func askOnStdin(_ context.Context, question string) (string, error) {
	fmt.Printf("\n%s\n> ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func newConversationID() string {
	return fmt.Sprintf("conv-%x", time.Now().UnixNano())
}

// buildVendorRegistry constructs the old-world provider.Registry every
// vendor Provider still speaks, inferring which Factory a configured
// provider name wants since config.ProviderConfig carries no explicit
// vendor-kind field — it falls back to Ollama, the only vendor the
// teacher's own config ever named.
func buildVendorRegistry(cfg *config.Config, creds *config.Credentials) *provider.Registry {
	reg := provider.NewRegistry()
	for name, pc := range cfg.Providers {
		factory := vendorFactory(name, pc, creds)
		if factory == nil {
			log.Warn().Str("provider", name).Msg("skipping provider: factory construction failed")
			continue
		}
		reg.RegisterFactory(name, factory)
	}
	return reg
}

func vendorFactory(name string, pc config.ProviderConfig, creds *config.Credentials) provider.Factory {
	apiKey := creds.GetAPIKey(name)
	switch {
	case strings.Contains(name, "bedrock"):
		region := pc.Endpoint
		if region == "" {
			region = "us-east-1"
		}
		runtime, err := provider.NewBedrockRuntime(context.Background(), region)
		if err != nil {
			log.Warn().Err(err).Str("provider", name).Msg("bedrock runtime init failed")
			return nil
		}
		return &provider.BedrockFactory{Runtime: runtime}
	case strings.Contains(name, "cerebras"):
		return &provider.CerebrasFactory{BaseURL: pc.Endpoint, APIKey: apiKey}
	case strings.Contains(name, "codex"):
		return &provider.CodexFactory{BaseURL: pc.Endpoint, APIKey: apiKey}
	case strings.Contains(name, "vertex"):
		return &provider.VertexFactory{BaseURL: pc.Endpoint, APIKey: apiKey}
	case strings.Contains(name, "zai"):
		return &provider.ZaiFactory{APIKey: apiKey, BaseURL: pc.Endpoint}
	case strings.Contains(name, "zen"):
		return provider.NewZenFactory(name, apiKey, pc.Endpoint)
	default:
		return provider.NewOllamaFactory(name, pc.Endpoint)
	}
}

func resolveProvider(cfg *config.Config, reg *provider.Registry) (string, config.ProviderConfig) {
	name := cfg.DefaultProvider
	if name == "" {
		providers := reg.List()
		if len(providers) == 0 {
			fmt.Println("Error: No providers configured")
			os.Exit(1)
		}
		name = providers[0]
	}
	pcfg, ok := cfg.Providers[name]
	if !ok {
		fmt.Printf("Error: Provider %q not found\n", name)
		os.Exit(1)
	}
	return name, pcfg
}

// buildTools registers every built-in tool handler into both a toolset.Set
// (driving registry.Dispatch) and an mcp.Proxy (driving tool listing and
// any configured upstream MCP server), matching the teacher's pattern of
// registering each handler once and reusing it everywhere.
func buildTools(sh *shell.Shell, webCache *store.Cache, creds *config.Credentials, subProvider provider.Provider, snapshots domain.SnapshotRepository) (*toolset.Set, *toolset.Set, *mcp.Proxy) {
	proxy := mcp.NewProxy(nil)
	if err := proxy.Initialize(context.Background()); err != nil {
		fmt.Printf("Warning: MCP init failed: %v\n", err)
	}

	builtin := toolset.NewSet()

	fileTracker := mcptools.NewFileReadTracker()
	readHandler := mcptools.NewReadHandler(fileTracker, nil)
	registerBoth(proxy, builtin, mcptools.NewReadTool(), readHandler.Handle)

	registerBoth(proxy, builtin, mcptools.NewGrepTool(), mcptools.MakeGrepHandler())

	editHandler := mcptools.NewEditHandler(fileTracker, nil, nil, snapshots)
	registerBoth(proxy, builtin, mcptools.NewEditTool(), editHandler.Handle)

	writeHandler := mcptools.NewWriteHandler(snapshots)
	registerBoth(proxy, builtin, mcptools.NewWriteTool(), writeHandler.Handle)

	removeHandler := mcptools.NewRemoveHandler(snapshots)
	registerBoth(proxy, builtin, mcptools.NewRemoveTool(), removeHandler.Handle)

	undoHandler := mcptools.NewUndoHandler(snapshots)
	registerBoth(proxy, builtin, mcptools.NewUndoTool(), undoHandler.Handle)

	registerBoth(proxy, builtin, mcptools.NewWebFetchTool(), mcptools.MakeWebFetchHandler(webCache))

	exaKey := creds.GetAPIKey("exa_ai")
	registerBoth(proxy, builtin, mcptools.NewWebSearchTool(), mcptools.MakeWebSearchHandler(webCache, exaKey, ""))

	shellHandler := mcptools.NewShellHandler(sh, nil)
	registerBoth(proxy, builtin, mcptools.NewShellTool(), shellHandler.Handle)

	pad := &mcptools.Scratchpad{}
	registerBoth(proxy, builtin, mcptools.NewTodoWriteTool(), mcptools.MakeTodoWriteHandler(pad))

	registerBoth(proxy, builtin, mcptools.NewGitStatusTool(), mcptools.MakeGitStatusHandler())
	registerBoth(proxy, builtin, mcptools.NewGitDiffTool(), mcptools.MakeGitDiffHandler())

	followupHandler := mcptools.NewFollowupHandler(askOnStdin)
	registerBoth(proxy, builtin, mcptools.NewFollowupTool(), followupHandler.Handle)

	planHandler := mcptools.NewPlanHandler(cwdOrDot())
	registerBoth(proxy, builtin, mcptools.NewPlanTool(), planHandler.Handle)

	skillHandler := mcptools.NewSkillHandler(nil)
	registerBoth(proxy, builtin, mcptools.NewSkillTool(), skillHandler.Handle)

	registerBoth(proxy, builtin, mcptools.NewAttemptCompletionTool(), mcptools.NewCompletionHandler().Handle)

	allTools, err := proxy.ListTools(context.Background())
	if err != nil {
		fmt.Printf("Warning: failed to list tools for SubAgent: %v\n", err)
	}

	subAgentSet := toolset.NewSet()
	subAgentHandler := mcptools.NewSubAgentHandler(subProvider, nil, nil, sh, webCache, exaKey, allTools)
	subAgentSet.Register(mcptools.NewSubAgentTool(), subAgentHandler.Handle)

	return builtin, subAgentSet, proxy
}

func registerBoth(proxy *mcp.Proxy, set *toolset.Set, tool mcp.Tool, handler mcp.ToolHandler) {
	proxy.RegisterTool(tool, handler)
	set.Register(tool, handler)
}

// mcpExecutor adapts an mcp.Proxy (local tool listing plus any configured
// upstream MCP server) to registry.Executor, for calls that fall through
// the Builtin and SubAgent executors.
type mcpExecutor struct {
	proxy *mcp.Proxy
	names map[domain.ToolName]struct{}
}

func newMCPExecutor(ctx context.Context, proxy *mcp.Proxy) (*mcpExecutor, error) {
	tools, err := proxy.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[domain.ToolName]struct{}, len(tools))
	for _, t := range tools {
		names[domain.ToolName(t.Name)] = struct{}{}
	}
	return &mcpExecutor{proxy: proxy, names: names}, nil
}

func (m *mcpExecutor) Contains(name domain.ToolName) bool {
	if m.names == nil {
		return false
	}
	_, ok := m.names[name]
	return ok
}

func (m *mcpExecutor) Execute(ctx context.Context, call domain.ToolCallFull) (domain.ToolOutput, error) {
	args := call.Arguments
	if len(args) == 0 {
		args = []byte(`{}`)
	}
	result, err := m.proxy.CallTool(ctx, string(call.Name), args)
	if err != nil {
		return domain.ToolOutput{}, err
	}
	if result == nil || len(result.Content) == 0 {
		return domain.EmptyOutput(), nil
	}
	values := make([]domain.ToolOutputValue, 0, len(result.Content))
	for _, block := range result.Content {
		if block.Text == "" {
			continue
		}
		values = append(values, domain.ToolOutputValue{Kind: domain.ToolOutputText, Text: block.Text})
	}
	if len(values) == 0 {
		return domain.ToolOutput{IsError: result.IsError, Values: []domain.ToolOutputValue{{Kind: domain.ToolOutputEmpty}}}, nil
	}
	return domain.ToolOutput{IsError: result.IsError, Values: values}, nil
}
