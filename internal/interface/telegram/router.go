// Package telegram implements the bot behind the Telegram webhook.
package telegram

import (
	"strings"
	"sync"

	"github.com/auniver/quiz-bridge/internal/domain/telegramuser"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/handler"
	"github.com/auniver/quiz-bridge/internal/interface/telegram/presenter"
	"github.com/auniver/quiz-bridge/pkg/logger"
)

// Commands the bot answers to. Matching is on the exact message text.
const (
	CommandStart    = "/start"
	CommandLink     = "/link"
	CommandSubjects = "/subjects"
	CommandStats    = "/stats"
	CommandHelp     = "/help"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes message texts and callback data to handlers.
// ══════════════════════════════════════════════════════════════════════════════

type prefixRoute struct {
	prefix  string
	handler handler.Handler
}

// Router maps messages and callbacks to handlers.
// Exact commands win over prefixes; prefixes are tried in registration order.
type Router struct {
	mu        sync.RWMutex
	commands  map[string]handler.Handler
	callbacks map[string]handler.Handler
	prefixes  []prefixRoute
	fallback  handler.Handler
}

// NewRouter creates a router that sends unmatched messages to fallback.
func NewRouter(fallback handler.Handler) *Router {
	return &Router{
		commands:  make(map[string]handler.Handler),
		callbacks: make(map[string]handler.Handler),
		fallback:  fallback,
	}
}

// RegisterCommand registers a handler for an exact message text.
func (r *Router) RegisterCommand(text string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[text] = h
}

// RegisterCallback registers a handler for exact callback data.
func (r *Router) RegisterCallback(data string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[data] = h
}

// RegisterPrefix registers a handler for messages starting with prefix.
func (r *Router) RegisterPrefix(prefix string, h handler.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, handler: h})
}

// Route returns the handler for a message text and a name for logging.
func (r *Router) Route(text string) (handler.Handler, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.commands[text]; ok {
		return h, text
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(text, p.prefix) {
			return p.handler, p.prefix
		}
	}
	return r.fallback, "unknown"
}

// RouteCallback returns the handler for callback data.
// Unknown callbacks have no handler and are only acknowledged.
func (r *Router) RouteCallback(data string) (handler.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.callbacks[data]
	return h, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT ROUTES
// ══════════════════════════════════════════════════════════════════════════════

// BackendReader is the part of the Primary Backend the bot reads.
type BackendReader interface {
	handler.LinkageChecker
	handler.SubjectLister
	handler.StatsReader
}

// RouterDependencies contains everything the default routes need.
type RouterDependencies struct {
	Backend   BackendReader
	Users     handler.TelegramUserRegistrar
	Linker    handler.AccountLinker
	Presenter *presenter.Presenter
	Logger    *logger.Logger
}

// NewDefaultRouter wires the bot's commands, callbacks and linking prefixes.
func NewDefaultRouter(deps RouterDependencies) *Router {
	log := deps.Logger
	if log == nil {
		log = logger.Default()
	}
	p := deps.Presenter
	if p == nil {
		p = presenter.New("")
	}

	start := handler.NewStartHandler(deps.Backend, deps.Users, p, log)
	link := handler.NewLinkHandler(p)
	creds := handler.NewCredentialsHandler(deps.Linker, p, log)

	r := NewRouter(handler.NewUnknownHandler(p))

	r.RegisterCommand(CommandStart, start)
	r.RegisterCommand(CommandHelp, start)
	r.RegisterCommand(CommandLink, link)
	r.RegisterCommand(CommandSubjects, handler.NewSubjectsHandler(deps.Backend, deps.Backend, p, log))
	r.RegisterCommand(CommandStats, handler.NewStatsHandler(deps.Backend, deps.Backend, p, log))

	r.RegisterPrefix(telegramuser.EmailPrefix, handler.HandlerFunc(creds.HandleEmail))
	r.RegisterPrefix(telegramuser.PasswordPrefix, handler.HandlerFunc(creds.HandlePassword))

	r.RegisterCallback(presenter.CallbackLinkAccount, link)
	r.RegisterCallback(presenter.CallbackHelp, start)

	return r
}
