package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	serverReadTimeout  = 60 * time.Second
	serverWriteTimeout = 60 * time.Second
	shutdownGrace      = 30 * time.Second

	// inheritedEnv marks a child started by a SIGUSR2 restart; it serves on fd 3.
	inheritedEnv      = "BUCONNECTS_INHERITED_LISTENER"
	inheritedListenFD = 3
)

// Server is an http.Server that drains on SIGINT/SIGTERM and hands its listener
// to a fresh copy of the binary on SIGUSR2.
// Hijacked websocket connections are invisible to http.Server.Shutdown, so
// owners of long-lived connections register hooks with OnShutdown.
type Server struct {
	*http.Server

	listener net.Listener
	signals  chan os.Signal
	done     chan struct{}
	once     sync.Once
	hooks    []func()
}

// NewServer creates a Server for handler on addr.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  serverReadTimeout,
			WriteTimeout: serverWriteTimeout,
		},
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers fn to run once the HTTP server stopped accepting requests.
// Hooks run in registration order.
func (s *Server) OnShutdown(fn func()) {
	s.hooks = append(s.hooks, fn)
}

// ListenAndServe binds (or inherits) the listener and serves until a shutdown
// signal has been fully handled.
func (s *Server) ListenAndServe() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.listener = ln

	signal.Notify(s.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR2)
	go s.watchSignals()

	if err := s.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-s.done
	return nil
}

func (s *Server) listen() (net.Listener, error) {
	if os.Getenv(inheritedEnv) != "" {
		ln, err := net.FileListener(os.NewFile(inheritedListenFD, "inherited-listener"))
		if err != nil {
			return nil, fmt.Errorf("inherit listener: %w", err)
		}
		Sugar.Infof("serving on inherited listener %s", ln.Addr())
		return ln, nil
	}
	addr := s.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

func (s *Server) watchSignals() {
	for sig := range s.signals {
		if sig == syscall.SIGUSR2 {
			pid, err := s.spawnSuccessor()
			if err != nil {
				Sugar.Errorf("restart failed, still serving: %v", err)
				continue
			}
			Sugar.Infof("successor started pid=%d, draining", pid)
		} else {
			Sugar.Infof("received %s, draining", sig)
		}
		s.drain()
		return
	}
}

func (s *Server) drain() {
	s.once.Do(func() {
		signal.Stop(s.signals)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			Sugar.Errorf("http shutdown: %v", err)
		} else {
			Sugar.Info("http server stopped")
		}
		for _, fn := range s.hooks {
			fn()
		}
		close(s.done)
	})
}

// spawnSuccessor re-executes the binary with the listening socket as fd 3.
func (s *Server) spawnSuccessor() (int, error) {
	tcpLn, ok := s.listener.(*net.TCPListener)
	if !ok {
		return 0, fmt.Errorf("listener %T cannot be handed over", s.listener)
	}
	f, err := tcpLn.File()
	if err != nil {
		return 0, fmt.Errorf("listener file: %w", err)
	}
	defer f.Close()

	env := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if len(e) < len(inheritedEnv) || e[:len(inheritedEnv)] != inheritedEnv {
			env = append(env, e)
		}
	}
	env = append(env, inheritedEnv+"=1")

	return syscall.ForkExec(os.Args[0], os.Args, &syscall.ProcAttr{
		Env:   env,
		Files: []uintptr{os.Stdin.Fd(), os.Stdout.Fd(), os.Stderr.Fd(), f.Fd()},
	})
}

// GraceServer serves handler on addr and runs hooks after the HTTP side drained.
func GraceServer(addr string, handler http.Handler, hooks ...func()) error {
	srv := NewServer(addr, handler)
	for _, fn := range hooks {
		srv.OnShutdown(fn)
	}
	return srv.ListenAndServe()
}
