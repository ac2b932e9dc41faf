package devserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type Options struct {
	Addr           string        // listen address, e.g. ":8888"
	Path           string        // websocket path, defaults to "/"
	PingInterval   time.Duration // zero disables pings
	AllowedObjects []string       // empty accepts every object id
	Advertise      bool          // announce over mDNS
	Instance       string        // mDNS instance name
	TCPAddr        string        // optional raw TCP listener for line-framed objects
}

// Server hosts the websocket endpoint, the document API and the inspection
// routes on one HTTP listener.
type Server struct {
	options     Options
	coordinator *Coordinator
	transport   *WSTransport
	tcp         *TCPTransport
	http        *http.Server
}

func NewServer(opts Options) *Server {
	if opts.Path == "" {
		opts.Path = "/"
	}
	coordinator := NewCoordinator(NewObjectRegistry(), NewBroker(), NewDocument())
	coordinator.AllowedObjects = opts.AllowedObjects

	transport := NewWSTransport()
	transport.OnConnect(coordinator.RegisterConn)
	transport.OnDisconnect(coordinator.UnregisterConn)
	transport.OnMessage(coordinator.Handle)

	s := &Server{options: opts, coordinator: coordinator, transport: transport}
	if opts.TCPAddr != "" {
		s.tcp = NewTCPTransport(opts.TCPAddr)
		s.tcp.OnConnect(coordinator.RegisterConn)
		s.tcp.OnDisconnect(coordinator.UnregisterConn)
		s.tcp.OnMessage(coordinator.Handle)
	}
	return s
}

func (s *Server) Coordinator() *Coordinator {
	return s.coordinator
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/iot/aliot/getDoc", s.HandleGetDoc)
	r.Post("/iot/aliot/getField", s.HandleGetField)
	r.Get("/api/document", s.HandleDocument)
	r.Post("/api/document", s.HandleUpdateDocument)
	r.Get("/api/objects", s.HandleObjects)
	r.Post("/api/objects/{id}/actions/{action}", s.HandleSendAction)
	r.Get("/api/routes", s.HandleRoutes)
	r.Get("/api/actions", s.HandleActionResults)
	r.Handle(s.options.Path, s.transport)
	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return err
	}
	slog.Info("Starting development server", "addr", ln.Addr().String(), "path", s.options.Path)

	if s.options.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		adv, err := Advertise(s.options.Instance, port, s.options.Path)
		if err != nil {
			slog.Warn("mDNS advertising disabled", "error", err)
		} else {
			slog.Info("Advertising over mDNS", "port", port, "path", s.options.Path)
			defer adv.Shutdown()
		}
	}

	if s.options.PingInterval > 0 {
		go s.pingLoop(ctx)
	}

	s.http = &http.Server{Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 2)
	go func() { errCh <- s.http.Serve(ln) }()
	if s.tcp != nil {
		go func() {
			if err := s.tcp.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down development server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.transport.Shutdown()
	if s.tcp != nil {
		s.tcp.Shutdown()
	}
	if err := s.http.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

func (s *Server) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.options.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.coordinator.PingAll()
		case <-ctx.Done():
			return
		}
	}
}

// URL is the websocket URL for a server reachable at host:port.
func (s *Server) URL(host string, port int) string {
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + s.options.Path
}
