// Package setup provides the interactive setup wizard for pilot.
package setup

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/pilot/internal/config"
	"github.com/vinayprograms/pilot/internal/credentials"
)

// Provider options
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google"
	ProviderGroq       = "groq"
	ProviderMistral    = "mistral"
	ProviderOpenRouter = "openrouter"
	ProviderLiteLLM    = "litellm"
	ProviderOllama     = "ollama"
	ProviderLMStudio   = "lmstudio"
	ProviderCustom     = "openai-compat"
)

// Config holds the choices collected by the wizard.
type Config struct {
	// Planner model
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Thinking string

	// Execution
	Workspace string

	// Audit destinations
	IndexEnabled bool
	NATSEnabled  bool
	NATSURL      string

	// Telemetry
	TelemetryEnabled  bool
	TelemetryProtocol string
	TelemetryEndpoint string

	// Credentials
	CredentialMethod string // "file" or "env"
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

// Step represents a setup wizard step
type Step int

const (
	StepWelcome Step = iota
	StepProvider
	StepModel
	StepCustomModel // Text input for model name (OpenRouter, Ollama, custom endpoints)
	StepAPIKey
	StepBaseURL
	StepThinking
	StepWorkspace
	StepAudit
	StepNATSURL
	StepTelemetry
	StepTelemetryEndpoint
	StepCredentialMethod
	StepConfirm
	StepWriteFiles
	StepComplete
)

// Model is the bubbletea model for the setup wizard
type Model struct {
	step      Step
	config    Config
	cursor    int
	textInput textinput.Model
	err       error
	width     int
	height    int

	// Edit mode - true if loading from existing config
	editMode     bool
	existingFile string

	// Results
	filesWritten []string
}

// New creates a new setup model
func New() Model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	m := Model{
		step:      StepWelcome,
		textInput: ti,
		config: Config{
			Workspace:         ".",
			Thinking:          "off",
			IndexEnabled:      true,
			NATSURL:           "nats://127.0.0.1:4222",
			TelemetryProtocol: "grpc",
			TelemetryEndpoint: "localhost:4317",
			CredentialMethod:  "file",
		},
	}

	// Try to load existing configuration
	if err := m.loadExistingConfig(); err == nil {
		m.editMode = true
	}

	return m
}

// loadExistingConfig prefills the wizard from pilot.toml in the current
// directory, if one exists.
func (m *Model) loadExistingConfig() error {
	path := "pilot.toml"
	if _, err := os.Stat(path); err != nil {
		return err
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	m.existingFile = path

	if cfg.Oracle.Provider != "" {
		m.config.Provider = cfg.Oracle.Provider
	}
	if cfg.Oracle.Model != "" {
		m.config.Model = cfg.Oracle.Model
	}
	if cfg.Oracle.BaseURL != "" {
		m.config.BaseURL = cfg.Oracle.BaseURL
	}
	if cfg.Oracle.Thinking != "" {
		m.config.Thinking = cfg.Oracle.Thinking
	}
	if cfg.Pilot.Workspace != "" {
		m.config.Workspace = cfg.Pilot.Workspace
	}

	m.config.IndexEnabled = cfg.Audit.DB != ""
	if cfg.Audit.NATSURL != "" {
		m.config.NATSEnabled = true
		m.config.NATSURL = cfg.Audit.NATSURL
	}

	if cfg.Telemetry.Enabled {
		m.config.TelemetryEnabled = true
		if cfg.Telemetry.Protocol != "" {
			m.config.TelemetryProtocol = cfg.Telemetry.Protocol
		}
		if cfg.Telemetry.Endpoint != "" {
			m.config.TelemetryEndpoint = cfg.Telemetry.Endpoint
		}
	}

	if cfg.Oracle.APIKeyEnv != "" {
		m.config.CredentialMethod = "env"
	}

	return nil
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case filesWrittenMsg:
		m.filesWritten = msg.files
		m.step = StepComplete
		return m, nil
	case errMsg:
		m.err = msg.error
		m.step = StepComplete
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Handle text input steps first - let them capture all keys except ctrl+c and enter
		if m.isTextInputStep() {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter":
				return m.handleEnter()
			default:
				var cmd tea.Cmd
				m.textInput, cmd = m.textInput.Update(msg)
				return m, cmd
			}
		}

		// Non-text-input steps - navigation keys work
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.step == StepComplete || m.step == StepWelcome {
				return m, tea.Quit
			}
			// Go back
			if m.step > StepWelcome {
				m.step = m.previousStep()
				m.cursor = 0
			}
			return m, nil

		case "enter":
			return m.handleEnter()

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil

		case "down", "j":
			max := m.maxCursorForStep()
			if m.cursor < max {
				m.cursor++
			}
			return m, nil
		}
	}

	return m, nil
}

func (m Model) previousStep() Step {
	// Handle conditional step skipping when going back
	prev := m.step - 1

	if prev == StepCredentialMethod && !m.needsCredentialChoice() {
		prev = StepTelemetryEndpoint
	}
	if prev == StepTelemetryEndpoint && !m.config.TelemetryEnabled {
		prev = StepTelemetry
	}
	if prev == StepNATSURL && !m.config.NATSEnabled {
		prev = StepAudit
	}
	if prev == StepBaseURL && !m.needsBaseURL() {
		prev = StepAPIKey
	}
	if prev == StepAPIKey && !m.needsAPIKey() {
		prev = StepCustomModel
	}
	if prev == StepCustomModel && !m.needsCustomModelInput() {
		prev = StepModel
	}
	if prev == StepModel && m.needsCustomModelInput() {
		prev = StepProvider
	}

	return prev
}

func (m Model) maxCursorForStep() int {
	switch m.step {
	case StepProvider:
		return len(m.getProviders()) - 1
	case StepModel:
		return len(m.getModels()) - 1
	case StepThinking:
		return 3 // off, low, medium, high
	case StepAudit:
		return 2 // trails, trails+index, trails+index+broadcast
	case StepTelemetry:
		return 2 // disabled, grpc, http
	case StepCredentialMethod:
		return 1 // file, env
	case StepConfirm:
		return 1 // confirm, cancel
	default:
		return 100 // fallback high number
	}
}

func (m Model) isTextInputStep() bool {
	switch m.step {
	case StepCustomModel, StepAPIKey, StepBaseURL, StepWorkspace,
		StepNATSURL, StepTelemetryEndpoint:
		return true
	}
	return false
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case StepWelcome:
		m.step = StepProvider
		m.cursor = m.findProviderIndex(m.config.Provider)

	case StepProvider:
		providers := m.getProviders()
		if m.cursor >= 0 && m.cursor < len(providers) {
			if providers[m.cursor].id != m.config.Provider {
				m.config.Provider = providers[m.cursor].id
				m.setDefaultModel()
			}
		}
		if m.needsCustomModelInput() {
			m.step = StepCustomModel
			m.textInput.SetValue(m.config.Model)
			m.textInput.Placeholder = "e.g., anthropic/claude-sonnet-4, llama3.2"
			m.textInput.Focus()
		} else {
			m.step = StepModel
			m.cursor = m.findModelIndex()
		}

	case StepModel:
		models := m.getModels()
		if m.cursor >= 0 && m.cursor < len(models) {
			m.config.Model = models[m.cursor].id
		}
		m.advanceToKeyOrURL()

	case StepCustomModel:
		model := strings.TrimSpace(m.textInput.Value())
		if model == "" {
			m.err = fmt.Errorf("model name is required")
			return m, nil
		}
		m.err = nil
		m.config.Model = model
		m.advanceToKeyOrURL()

	case StepAPIKey:
		if m.textInput.Value() != "" {
			m.config.APIKey = m.textInput.Value()
		}
		m.textInput.EchoMode = textinput.EchoNormal
		if m.needsBaseURL() {
			m.step = StepBaseURL
			if m.config.BaseURL != "" {
				m.textInput.SetValue(m.config.BaseURL)
			} else {
				m.textInput.SetValue(m.getDefaultBaseURL())
			}
			m.textInput.Placeholder = "https://..."
		} else {
			m.step = StepThinking
			m.cursor = m.findThinkingIndex()
		}

	case StepBaseURL:
		m.config.BaseURL = strings.TrimSpace(m.textInput.Value())
		m.step = StepThinking
		m.cursor = m.findThinkingIndex()

	case StepThinking:
		thinkingOptions := []string{"off", "low", "medium", "high"}
		if m.cursor >= 0 && m.cursor < len(thinkingOptions) {
			m.config.Thinking = thinkingOptions[m.cursor]
		}
		m.step = StepWorkspace
		m.textInput.SetValue(m.config.Workspace)
		m.textInput.Placeholder = "/path/to/workspace"

	case StepWorkspace:
		m.config.Workspace = m.textInput.Value()
		if m.config.Workspace == "" {
			m.config.Workspace = "."
		}
		m.step = StepAudit
		switch {
		case m.config.NATSEnabled:
			m.cursor = 2
		case m.config.IndexEnabled:
			m.cursor = 1
		default:
			m.cursor = 0
		}

	case StepAudit:
		m.config.IndexEnabled = m.cursor >= 1
		m.config.NATSEnabled = m.cursor == 2
		if m.config.NATSEnabled {
			m.step = StepNATSURL
			m.textInput.SetValue(m.config.NATSURL)
			m.textInput.Placeholder = "nats://host:4222"
		} else {
			m.step = StepTelemetry
			m.cursor = m.findTelemetryIndex()
		}

	case StepNATSURL:
		if v := strings.TrimSpace(m.textInput.Value()); v != "" {
			m.config.NATSURL = v
		}
		m.step = StepTelemetry
		m.cursor = m.findTelemetryIndex()

	case StepTelemetry:
		m.config.TelemetryEnabled = m.cursor > 0
		if m.cursor == 2 {
			m.config.TelemetryProtocol = "http"
		} else {
			m.config.TelemetryProtocol = "grpc"
		}
		if m.config.TelemetryEnabled {
			m.step = StepTelemetryEndpoint
			m.textInput.SetValue(m.defaultTelemetryEndpoint())
			m.textInput.Placeholder = "host:port"
		} else {
			m.advanceToCredentialsOrConfirm()
		}

	case StepTelemetryEndpoint:
		if v := strings.TrimSpace(m.textInput.Value()); v != "" {
			m.config.TelemetryEndpoint = v
		}
		m.advanceToCredentialsOrConfirm()

	case StepCredentialMethod:
		if m.cursor == 0 {
			m.config.CredentialMethod = "file"
		} else {
			m.config.CredentialMethod = "env"
		}
		m.step = StepConfirm
		m.cursor = 0

	case StepConfirm:
		if m.cursor == 0 {
			m.step = StepWriteFiles
			return m, m.writeFiles()
		}
		m.step = m.previousStep()
		m.cursor = 0

	case StepComplete:
		return m, tea.Quit
	}

	return m, nil
}

// advanceToKeyOrURL moves past model selection toward the API key and
// base URL steps, skipping what the provider does not need.
func (m *Model) advanceToKeyOrURL() {
	if m.needsAPIKey() {
		m.step = StepAPIKey
		m.textInput.SetValue("")
		m.textInput.Placeholder = "sk-... (leave empty to keep existing)"
		m.textInput.EchoMode = textinput.EchoPassword
		return
	}
	if m.needsBaseURL() {
		m.step = StepBaseURL
		if m.config.BaseURL != "" {
			m.textInput.SetValue(m.config.BaseURL)
		} else {
			m.textInput.SetValue(m.getDefaultBaseURL())
		}
		m.textInput.Placeholder = "http://..."
		return
	}
	m.step = StepThinking
	m.cursor = m.findThinkingIndex()
}

func (m *Model) advanceToCredentialsOrConfirm() {
	if m.needsCredentialChoice() {
		m.step = StepCredentialMethod
		if m.config.CredentialMethod == "env" {
			m.cursor = 1
		} else {
			m.cursor = 0
		}
		return
	}
	m.step = StepConfirm
	m.cursor = 0
}

func (m Model) needsCustomModelInput() bool {
	switch m.config.Provider {
	case ProviderOpenRouter, ProviderLiteLLM, ProviderOllama, ProviderLMStudio, ProviderCustom:
		return true
	}
	return false
}

func (m Model) needsAPIKey() bool {
	switch m.config.Provider {
	case ProviderOllama, ProviderLMStudio:
		return false
	}
	return true
}

func (m Model) needsBaseURL() bool {
	switch m.config.Provider {
	case ProviderOpenRouter, ProviderLiteLLM, ProviderOllama, ProviderLMStudio, ProviderCustom:
		return true
	}
	return false
}

// needsCredentialChoice reports whether the captured key can go to
// credentials.toml. Providers without a typed credentials slot use
// api_key_env instead.
func (m Model) needsCredentialChoice() bool {
	if m.config.APIKey == "" {
		return false
	}
	switch m.config.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderMistral, ProviderGroq:
		return true
	}
	return false
}

func (m Model) getDefaultBaseURL() string {
	switch m.config.Provider {
	case ProviderOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderLiteLLM:
		return "http://localhost:4000"
	case ProviderOllama:
		return "http://localhost:11434/v1"
	case ProviderLMStudio:
		return "http://localhost:1234/v1"
	default:
		return ""
	}
}

func (m Model) defaultTelemetryEndpoint() string {
	if m.config.TelemetryEndpoint != "" {
		return m.config.TelemetryEndpoint
	}
	if m.config.TelemetryProtocol == "http" {
		return "localhost:4318"
	}
	return "localhost:4317"
}

func (m *Model) setDefaultModel() {
	switch m.config.Provider {
	case ProviderAnthropic:
		m.config.Model = "claude-sonnet-4-20250514"
	case ProviderOpenAI:
		m.config.Model = "gpt-4o"
	case ProviderGoogle:
		m.config.Model = "gemini-2.0-flash"
	case ProviderGroq:
		m.config.Model = "llama-3.3-70b-versatile"
	case ProviderMistral:
		m.config.Model = "mistral-large-latest"
	case ProviderOpenRouter:
		m.config.Model = "anthropic/claude-sonnet-4"
	case ProviderLiteLLM:
		m.config.Model = "claude-sonnet-4-20250514"
	case ProviderOllama:
		m.config.Model = "llama3.2"
	case ProviderLMStudio:
		m.config.Model = "local-model"
	default:
		m.config.Model = ""
	}
}

func (m Model) findProviderIndex(provider string) int {
	for i, p := range m.getProviders() {
		if p.id == provider {
			return i
		}
	}
	return 0
}

func (m Model) findModelIndex() int {
	for i, opt := range m.getModels() {
		if opt.id == m.config.Model {
			return i
		}
	}
	return 0
}

func (m Model) findThinkingIndex() int {
	options := []string{"off", "low", "medium", "high"}
	for i, opt := range options {
		if opt == m.config.Thinking {
			return i
		}
	}
	return 0
}

func (m Model) findTelemetryIndex() int {
	if !m.config.TelemetryEnabled {
		return 0
	}
	if m.config.TelemetryProtocol == "http" {
		return 2
	}
	return 1
}

type providerOption struct {
	id   string
	name string
	desc string
}

func (m Model) getProviders() []providerOption {
	return []providerOption{
		{ProviderAnthropic, "Anthropic", "Claude models (recommended)"},
		{ProviderOpenAI, "OpenAI", "GPT-4o, o3 models"},
		{ProviderGoogle, "Google", "Gemini models"},
		{ProviderGroq, "Groq", "Fast inference (Llama, Mixtral)"},
		{ProviderMistral, "Mistral", "Mistral models"},
		{ProviderOpenRouter, "OpenRouter", "Multi-provider router"},
		{ProviderLiteLLM, "LiteLLM", "Self-hosted proxy (OpenAI-compatible)"},
		{ProviderOllama, "Ollama", "Local models (free, requires install)"},
		{ProviderLMStudio, "LM Studio", "Local models with UI"},
		{ProviderCustom, "Custom", "Custom OpenAI-compatible endpoint"},
	}
}

type modelOption struct {
	id   string
	name string
}

func (m Model) getModels() []modelOption {
	switch m.config.Provider {
	case ProviderAnthropic:
		return []modelOption{
			{"claude-sonnet-4-20250514", "Claude Sonnet 4 (recommended)"},
			{"claude-opus-4-20250514", "Claude Opus 4 (most capable)"},
			{"claude-3-5-haiku-20241022", "Claude 3.5 Haiku (fast)"},
		}
	case ProviderOpenAI:
		return []modelOption{
			{"gpt-4o", "GPT-4o (recommended)"},
			{"gpt-4o-mini", "GPT-4o Mini (fast)"},
			{"o3", "o3 (reasoning)"},
			{"o3-mini", "o3 Mini (fast reasoning)"},
		}
	case ProviderGoogle:
		return []modelOption{
			{"gemini-2.0-flash", "Gemini 2.0 Flash (recommended)"},
			{"gemini-2.0-pro", "Gemini 2.0 Pro"},
			{"gemini-1.5-pro", "Gemini 1.5 Pro"},
		}
	case ProviderGroq:
		return []modelOption{
			{"llama-3.3-70b-versatile", "Llama 3.3 70B (recommended)"},
			{"llama-3.1-8b-instant", "Llama 3.1 8B (fast)"},
			{"mixtral-8x7b-32768", "Mixtral 8x7B"},
		}
	case ProviderMistral:
		return []modelOption{
			{"mistral-large-latest", "Mistral Large (recommended)"},
			{"mistral-medium-latest", "Mistral Medium"},
			{"mistral-small-latest", "Mistral Small (fast)"},
		}
	default:
		return []modelOption{
			{m.config.Model, "Default model"},
		}
	}
}

// View renders the current step
func (m Model) View() string {
	var s strings.Builder

	switch m.step {
	case StepWelcome:
		s.WriteString(m.viewWelcome())
	case StepProvider:
		s.WriteString(m.viewProvider())
	case StepModel:
		s.WriteString(m.viewModel())
	case StepCustomModel:
		s.WriteString(m.viewCustomModel())
	case StepAPIKey:
		s.WriteString(m.viewAPIKey())
	case StepBaseURL:
		s.WriteString(m.viewBaseURL())
	case StepThinking:
		s.WriteString(m.viewThinking())
	case StepWorkspace:
		s.WriteString(m.viewWorkspace())
	case StepAudit:
		s.WriteString(m.viewAudit())
	case StepNATSURL:
		s.WriteString(m.viewNATSURL())
	case StepTelemetry:
		s.WriteString(m.viewTelemetry())
	case StepTelemetryEndpoint:
		s.WriteString(m.viewTelemetryEndpoint())
	case StepCredentialMethod:
		s.WriteString(m.viewCredentialMethod())
	case StepConfirm:
		s.WriteString(m.viewConfirm())
	case StepWriteFiles:
		s.WriteString(m.viewWriting())
	case StepComplete:
		s.WriteString(m.viewComplete())
	}

	return s.String()
}

func (m Model) viewWelcome() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("✈ Pilot Setup"))
	s.WriteString("\n\n")
	if m.editMode {
		s.WriteString(infoStyle.Render("Found existing configuration: " + m.existingFile))
		s.WriteString("\n\n")
		s.WriteString(normalStyle.Render("This wizard will help you edit your configuration."))
		s.WriteString("\n")
		s.WriteString(normalStyle.Render("Current values will be pre-filled."))
		s.WriteString("\n\n")
	} else {
		s.WriteString(normalStyle.Render("This wizard will help you configure the pilot execution engine."))
		s.WriteString("\n\n")
	}
	s.WriteString(dimStyle.Render("Press Enter to continue, q to quit"))
	return s.String()
}

func (m Model) viewProvider() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Planner Provider") + "\n")
	s.WriteString(subtitleStyle.Render("Select the provider for the planning model") + "\n\n")

	providers := m.getProviders()
	for i, p := range providers {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(p.name) + " " + dimStyle.Render(p.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select"))
	return s.String()
}

func (m Model) viewModel() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Model Selection") + "\n")
	s.WriteString(subtitleStyle.Render("Select the model to use") + "\n\n")

	models := m.getModels()
	for i, model := range models {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(model.name) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select"))
	return s.String()
}

func (m Model) viewCustomModel() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Model Name") + "\n")

	switch m.config.Provider {
	case ProviderOllama:
		s.WriteString(subtitleStyle.Render("Enter the Ollama model to use") + "\n\n")
		s.WriteString(dimStyle.Render("Examples: llama3.2, codellama, mistral, phi3, qwen2.5") + "\n")
		s.WriteString(dimStyle.Render("Run 'ollama list' to see your downloaded models") + "\n\n")
	case ProviderLMStudio:
		s.WriteString(subtitleStyle.Render("Enter the model name from LM Studio") + "\n\n")
		s.WriteString(dimStyle.Render("Check LM Studio UI for available model names") + "\n\n")
	case ProviderLiteLLM:
		s.WriteString(subtitleStyle.Render("Enter the model name (as configured in LiteLLM)") + "\n\n")
		s.WriteString(dimStyle.Render("Examples: claude-sonnet-4, gpt-4o, gemini-2.0-flash") + "\n\n")
	case ProviderOpenRouter:
		s.WriteString(subtitleStyle.Render("Enter the OpenRouter model identifier") + "\n\n")
		s.WriteString(dimStyle.Render("Examples: anthropic/claude-sonnet-4, openai/gpt-4o") + "\n\n")
	default:
		s.WriteString(subtitleStyle.Render("Enter the model name") + "\n\n")
	}

	if m.err != nil {
		s.WriteString(errorStyle.Render(m.err.Error()) + "\n\n")
	}
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("Enter to continue"))
	return s.String()
}

func (m Model) viewAPIKey() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("API Key") + "\n")
	s.WriteString(subtitleStyle.Render("Enter your API key for "+m.config.Provider) + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("Stored in credentials.toml (mode 0600) or read from the environment"))
	return s.String()
}

func (m Model) viewBaseURL() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Endpoint URL") + "\n")
	s.WriteString(subtitleStyle.Render("Base URL for the "+m.config.Provider+" endpoint") + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("Enter to continue"))
	return s.String()
}

func (m Model) viewThinking() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Extended Thinking") + "\n")
	s.WriteString(subtitleStyle.Render("How much reasoning effort should the planner spend?") + "\n\n")

	options := []struct{ name, desc string }{
		{"off", "no extended thinking (fastest)"},
		{"low", "brief reasoning"},
		{"medium", "moderate reasoning"},
		{"high", "thorough reasoning (slowest)"},
	}
	for i, opt := range options {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt.name) + " - " + dimStyle.Render(opt.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select, q to go back"))
	return s.String()
}

func (m Model) viewWorkspace() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Workspace") + "\n")
	s.WriteString(subtitleStyle.Render("Directory commands run in") + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("Enter to accept"))
	return s.String()
}

func (m Model) viewAudit() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Audit Trail") + "\n")
	s.WriteString(subtitleStyle.Render("Every command attempt is recorded; choose the destinations") + "\n\n")

	options := []struct{ name, desc string }{
		{"Trail files only", "one JSONL transcript per run"},
		{"Trails + run index", "adds a SQLite index for replay lookup (recommended)"},
		{"Trails + index + broadcast", "also publishes records to NATS"},
	}
	for i, opt := range options {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt.name) + " - " + dimStyle.Render(opt.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select, q to go back"))
	return s.String()
}

func (m Model) viewNATSURL() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("NATS Server") + "\n")
	s.WriteString(subtitleStyle.Render("URL of the server audit records broadcast to") + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("Enter to accept"))
	return s.String()
}

func (m Model) viewTelemetry() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Telemetry") + "\n")
	s.WriteString(subtitleStyle.Render("Export OpenTelemetry traces for each run?") + "\n\n")

	options := []struct{ name, desc string }{
		{"Disabled", "no traces exported"},
		{"OTLP over gRPC", "export to an OTLP collector (port 4317)"},
		{"OTLP over HTTP", "export to an OTLP collector (port 4318)"},
	}
	for i, opt := range options {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt.name) + " - " + dimStyle.Render(opt.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select, q to go back"))
	return s.String()
}

func (m Model) viewTelemetryEndpoint() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Collector Endpoint") + "\n")
	s.WriteString(subtitleStyle.Render("Address of your OTLP collector") + "\n\n")
	s.WriteString(m.textInput.View() + "\n\n")
	s.WriteString(dimStyle.Render("Enter to accept"))
	return s.String()
}

func (m Model) viewCredentialMethod() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Credential Storage") + "\n")
	s.WriteString(subtitleStyle.Render("Where should the API key live?") + "\n\n")

	options := []struct{ name, desc string }{
		{"Credentials file", "~/.config/pilot/credentials.toml (mode 0600)"},
		{"Environment variable", "you export " + apiKeyEnvFor(m.config.Provider) + " yourself"},
	}
	for i, opt := range options {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt.name) + " - " + dimStyle.Render(opt.desc) + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("↑/↓ to move, Enter to select, q to go back"))
	return s.String()
}

func (m Model) viewConfirm() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("Configuration Summary") + "\n\n")

	s.WriteString(normalStyle.Render("Provider: ") + selectedStyle.Render(m.config.Provider) + "\n")
	s.WriteString(normalStyle.Render("Model: ") + selectedStyle.Render(m.config.Model) + "\n")
	s.WriteString(normalStyle.Render("Thinking: ") + selectedStyle.Render(m.config.Thinking) + "\n")
	if m.config.BaseURL != "" {
		s.WriteString(normalStyle.Render("Base URL: ") + selectedStyle.Render(m.config.BaseURL) + "\n")
	}
	s.WriteString(normalStyle.Render("Workspace: ") + selectedStyle.Render(m.config.Workspace) + "\n")

	auditDesc := "trail files"
	if m.config.IndexEnabled {
		auditDesc += " + run index"
	}
	if m.config.NATSEnabled {
		auditDesc += " + NATS (" + m.config.NATSURL + ")"
	}
	s.WriteString(normalStyle.Render("Audit: ") + selectedStyle.Render(auditDesc) + "\n")

	if m.config.TelemetryEnabled {
		s.WriteString(normalStyle.Render("Telemetry: ") + selectedStyle.Render(m.config.TelemetryProtocol+" to "+m.config.TelemetryEndpoint) + "\n")
	}
	if m.config.APIKey != "" {
		s.WriteString(normalStyle.Render("Credentials: ") + selectedStyle.Render(m.config.CredentialMethod) + "\n")
	}

	s.WriteString("\n" + normalStyle.Render("Files to create:") + "\n")
	s.WriteString(dimStyle.Render("  - pilot.toml\n"))
	if m.config.CredentialMethod == "file" && m.needsCredentialChoice() {
		s.WriteString(dimStyle.Render("  - " + credentials.DefaultPath() + "\n"))
	}

	s.WriteString("\n")
	options := []string{"Create files", "Go back"}
	for i, opt := range options {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		s.WriteString(cursor + style.Render(opt) + "\n")
	}

	return s.String()
}

func (m Model) viewWriting() string {
	return (titleStyle.Render("Writing Files...") + "\n\n" +
		normalStyle.Render("Creating configuration files..."))
}

func (m Model) viewComplete() string {
	if m.err != nil {
		return (errorStyle.Render("Error") + "\n\n" +
			normalStyle.Render(m.err.Error()) + "\n\n" +
			dimStyle.Render("Press q to exit"))
	}

	var s strings.Builder
	s.WriteString(successStyle.Render("✓ Setup Complete!") + "\n\n")
	s.WriteString(normalStyle.Render("Created files:") + "\n")
	for _, f := range m.filesWritten {
		s.WriteString(dimStyle.Render("  - "+f) + "\n")
	}

	s.WriteString("\n" + normalStyle.Render("Next steps:") + "\n")
	s.WriteString(dimStyle.Render("  1. Review pilot.toml") + "\n")
	if m.config.APIKey != "" && m.config.CredentialMethod == "env" {
		s.WriteString(dimStyle.Render("  2. Set "+apiKeyEnvFor(m.config.Provider)+" in your environment") + "\n")
		s.WriteString(dimStyle.Render("  3. Run: pilot run plan.yaml") + "\n")
	} else {
		s.WriteString(dimStyle.Render("  2. Run: pilot run plan.yaml") + "\n")
	}

	s.WriteString("\n" + dimStyle.Render("Press q to exit"))
	return s.String()
}

// apiKeyEnvFor names the environment variable the generated config
// reads the key from when it is not stored in credentials.toml.
func apiKeyEnvFor(provider string) string {
	if env := config.DefaultAPIKeyEnv(provider); env != "" {
		return env
	}
	return strings.ToUpper(strings.ReplaceAll(provider, "-", "_")) + "_API_KEY"
}

// Messages
type filesWrittenMsg struct {
	files []string
}

type errMsg struct {
	error error
}

func (m Model) writeFiles() tea.Cmd {
	return func() tea.Msg {
		var files []string

		// Write pilot.toml
		if err := os.WriteFile("pilot.toml", []byte(m.generatePilotTOML()), 0644); err != nil {
			return errMsg{err}
		}
		files = append(files, "pilot.toml")

		// Write credentials to ~/.config/pilot/credentials.toml
		if m.config.CredentialMethod == "file" && m.needsCredentialChoice() {
			if err := m.writeCredentials(); err != nil {
				return errMsg{err}
			}
			files = append(files, credentials.DefaultPath())
		}

		return filesWrittenMsg{files}
	}
}

func (m Model) generatePilotTOML() string {
	var sb strings.Builder

	sb.WriteString("# Pilot Configuration\n")
	sb.WriteString("# Generated by: pilot setup\n\n")

	sb.WriteString("[pilot]\n")
	sb.WriteString(fmt.Sprintf("workspace = %q\n\n", m.config.Workspace))

	sb.WriteString("# Execution loop\n")
	sb.WriteString("[run]\n")
	sb.WriteString("max_iterations = 50\n")
	sb.WriteString("max_consecutive_failures = 3\n")
	sb.WriteString("timeout_ms = 60000\n\n")

	sb.WriteString("# Planner model\n")
	sb.WriteString("[oracle]\n")
	sb.WriteString(fmt.Sprintf("provider = %q\n", m.config.Provider))
	sb.WriteString(fmt.Sprintf("model = %q\n", m.config.Model))
	sb.WriteString("max_tokens = 8192\n")
	if m.config.BaseURL != "" {
		sb.WriteString(fmt.Sprintf("base_url = %q\n", m.config.BaseURL))
	}
	if m.config.Thinking != "" && m.config.Thinking != "off" {
		sb.WriteString(fmt.Sprintf("thinking = %q\n", m.config.Thinking))
	}
	if m.config.APIKey != "" && m.config.CredentialMethod == "env" {
		sb.WriteString(fmt.Sprintf("api_key_env = %q\n", apiKeyEnvFor(m.config.Provider)))
	}
	sb.WriteString("\n")

	sb.WriteString("# Audit destinations\n")
	sb.WriteString("[audit]\n")
	sb.WriteString("dir = \"~/.local/pilot/runs\"\n")
	if m.config.IndexEnabled {
		sb.WriteString("db = \"~/.local/pilot/index.db\"\n")
	} else {
		sb.WriteString("db = \"\"\n")
	}
	if m.config.NATSEnabled {
		sb.WriteString(fmt.Sprintf("nats_url = %q\n", m.config.NATSURL))
		sb.WriteString("nats_subject = \"pilot.audit\"\n")
	}

	if m.config.TelemetryEnabled {
		sb.WriteString("\n[telemetry]\n")
		sb.WriteString("enabled = true\n")
		sb.WriteString(fmt.Sprintf("endpoint = %q\n", m.config.TelemetryEndpoint))
		sb.WriteString(fmt.Sprintf("protocol = %q\n", m.config.TelemetryProtocol))
	}

	return sb.String()
}

func (m Model) writeCredentials() error {
	// Load existing credentials or create new
	creds, _, _ := credentials.Load()
	if creds == nil {
		creds = &credentials.Credentials{}
	}

	creds.SetAPIKey(m.config.Provider, m.config.APIKey)

	return creds.Save()
}

// Run starts the setup wizard
func Run() error {
	p := tea.NewProgram(New())
	_, err := p.Run()
	return err
}
