// Package gameserver wires the transport, SessionManager, idempotency
// cache, rules pack, and persistence port into the action pipeline
// described in spec §4.7. Structurally this is the teacher's
// internal/websocket.Handler (gin route -> gorilla Upgrader ->
// per-connection pumps -> a dispatch switch) regrown around this
// protocol's message types and the ten-step ACTION pipeline, with the
// dispatch switch serialized onto a single session-thread goroutine per
// spec §5 instead of being invoked directly from each connection's read
// pump goroutine.
package gameserver

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"boardgo/internal/idempotency"
	"boardgo/internal/metrics"
	"boardgo/internal/persistence"
	"boardgo/internal/protocol"
	"boardgo/internal/rules"
	"boardgo/internal/session"
	"boardgo/internal/sessionmanager"
)

// commandQueueSize bounds how many pending frame-dispatches the session
// thread will buffer before a caller blocks on enqueue.
const commandQueueSize = 256

// GameServer is the single-logical-owner described in spec §5: every
// mutation of GameSessionState and the SessionManager is executed inside
// run(), the sole consumer of commands.
type GameServer struct {
	sessionID string

	sessions *sessionmanager.Manager
	cache    *idempotency.Cache
	store    persistence.Store
	logger   *logrus.Logger
	metrics  *metrics.Metrics

	packs       map[string]rules.GamePackRules
	defaultPack rules.GamePackRules
	activePack  rules.GamePackRules

	state      session.GameSessionState
	connPlayer map[*Connection]string

	// limiters backs allowFrame (spec §4.11), one token bucket per seat. It
	// is guarded by its own mutex rather than the session thread: it is
	// consulted from each connection's readPump goroutine, ahead of and
	// independent of dispatch.
	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	rateRPS    rate.Limit
	rateBurst  int

	commands chan func()
	upgrader websocket.Upgrader
}

// Config bundles GameServer's collaborators. Zero values are valid for
// every optional field (Store, Logger, Metrics): a nil Store skips saves,
// a nil Logger is replaced by a default logrus.New() logger (stderr), nil Metrics disables
// instrumentation, and RateRPS <= 0 disables rate limiting.
type Config struct {
	SessionID           string
	DefaultPack         rules.GamePackRules
	Store               persistence.Store
	Logger              *logrus.Logger
	Metrics             *metrics.Metrics
	RateRPS             float64
	RateBurst           int
	IdempotencyCapacity int
}

// New constructs a GameServer and starts its session thread. Callers
// should call RegisterPack for every pack besides DefaultPack before
// accepting connections.
func New(cfg Config) *GameServer {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
	}
	rateBurst := cfg.RateBurst
	if rateBurst <= 0 {
		rateBurst = 1
	}

	gs := &GameServer{
		sessionID:   cfg.SessionID,
		sessions:    sessionmanager.New(),
		cache:       idempotency.New(cfg.IdempotencyCapacity),
		store:       cfg.Store,
		logger:      logger,
		metrics:     cfg.Metrics,
		packs:       make(map[string]rules.GamePackRules),
		defaultPack: cfg.DefaultPack,
		state:       session.New(cfg.SessionID),
		connPlayer:  make(map[*Connection]string),
		limiters:    make(map[string]*rate.Limiter),
		rateRPS:     rate.Limit(cfg.RateRPS),
		rateBurst:   rateBurst,
		commands:    make(chan func(), commandQueueSize),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if cfg.DefaultPack != nil {
		gs.packs[cfg.DefaultPack.PackID()] = cfg.DefaultPack
	}

	go gs.run()
	return gs
}

// RegisterPack makes pack selectable by StartGame via its PackID.
func (gs *GameServer) RegisterPack(pack rules.GamePackRules) {
	gs.enqueueAndWait(func() {
		gs.packs[pack.PackID()] = pack
	})
}

// run is the session thread: it is the only goroutine that ever touches
// gs.state, gs.sessions' mutating methods in combination, or gs.cache.
// gs.limiters lives outside this discipline on purpose: allowFrame runs
// ahead of dispatch, in each connection's own readPump goroutine, and is
// guarded by its own mutex rather than being serialized here.
func (gs *GameServer) run() {
	for cmd := range gs.commands {
		cmd()
	}
}

func (gs *GameServer) enqueue(fn func()) {
	gs.commands <- fn
}

// enqueueAndWait runs fn on the session thread and blocks until it
// completes, for callers (StartGame, RegisterPack, tests) that need the
// result synchronously.
func (gs *GameServer) enqueueAndWait(fn func()) {
	done := make(chan struct{})
	gs.enqueue(func() {
		fn()
		close(done)
	})
	<-done
}

// HandleConnection is a gin handler for the single duplex endpoint (spec
// §6.5), registered at /ws by the embedder.
func (gs *GameServer) HandleConnection(c *gin.Context) {
	conn, err := gs.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		gs.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	connection := newConnection(conn)
	gs.metrics.ConnectionOpened()
	go connection.writePump()

	connection.readPump(
		func() bool { return gs.allowFrame(connection.PlayerID()) },
		func() { gs.sendError(connection, "rate limit exceeded") },
		func(frame []byte) {
			gs.enqueue(func() { gs.dispatch(connection, frame) })
		},
	)

	gs.enqueue(func() { gs.onConnectionClosed(connection) })
	gs.metrics.ConnectionClosed()
}

// allowFrame reports whether a frame from playerID (empty before JOIN
// resolves a seat) may proceed to dispatch, per spec §4.11. Safe for
// concurrent use across every connection's readPump goroutine.
func (gs *GameServer) allowFrame(playerID string) bool {
	if gs.rateRPS <= 0 || playerID == "" {
		return true
	}

	gs.limitersMu.Lock()
	defer gs.limitersMu.Unlock()

	limiter, ok := gs.limiters[playerID]
	if !ok {
		limiter = rate.NewLimiter(gs.rateRPS, gs.rateBurst)
		gs.limiters[playerID] = limiter
	}
	return limiter.Allow()
}

// dispatch decodes one frame and routes it to the matching handler. On
// decode failure it replies ERROR and leaves the connection open (spec
// §4.7.1, §7).
func (gs *GameServer) dispatch(conn *Connection, frame []byte) {
	env, err := protocol.Decode(frame)
	if err != nil {
		gs.sendError(conn, err.Error())
		return
	}

	switch env.Type {
	case protocol.TypeJoin:
		gs.handleJoin(conn, env)
	case protocol.TypeSetReady:
		gs.handleSetReady(conn, env)
	case protocol.TypePing:
		gs.handlePing(conn, env)
	case protocol.TypeLeave:
		gs.handleLeave(conn, env)
	case protocol.TypeAction:
		gs.handleAction(conn, env)
	default:
		gs.sendError(conn, fmt.Sprintf("unsupported message type %q", env.Type))
	}
}

// onConnectionClosed runs orphan cleanup (spec §4.7.1): if this socket was
// associated with a playerId and that seat is still marked connected, mark
// it disconnected, best-effort persist if InGame, and surface the offline
// badge via a lobby broadcast.
func (gs *GameServer) onConnectionClosed(conn *Connection) {
	playerID, ok := gs.connPlayer[conn]
	if !ok {
		return
	}
	delete(gs.connPlayer, conn)

	if !gs.sessions.IsConnected(playerID) {
		return
	}
	gs.sessions.MarkDisconnected(playerID)

	if gs.state.Phase == session.PhaseInGame {
		gs.persistAsync()
	}
	gs.broadcastLobbyState()
}
