package testbed

import (
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// Server is a redis-server process.
type Server struct {
	Port   uint16
	Args   []string
	Cmd    *exec.Cmd
	Paused bool
}

// PortStr returns port as string.
func (s *Server) PortStr() string {
	return strconv.Itoa(int(s.Port))
}

// Addr returns address of server.
func (s *Server) Addr() string {
	return "127.0.0.1:" + s.PortStr()
}

// Start starts server process if it is not running.
func (s *Server) Start() error {
	if s.Cmd != nil {
		return nil
	}
	s.Paused = false
	port := s.PortStr()
	args := append([]string{
		"--bind", "127.0.0.1",
		"--port", port,
		"--logfile", port + ".log",
		"--save", "",
	}, s.Args...)
	s.Cmd = exec.Command(Binary, args...)
	s.Cmd.Dir = Dir
	if err := s.Cmd.Start(); err != nil {
		s.Cmd = nil
		return err
	}
	// wait till it accepts connections
	for i := 0; i < 100; i++ {
		if _, err := Do(s.Addr(), "PING"); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// Pause stops server process with SIGSTOP.
func (s *Server) Pause() error {
	if s.Paused {
		return nil
	}
	if err := s.Cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return err
	}
	s.Paused = true
	return nil
}

// Resume continues paused server.
func (s *Server) Resume() error {
	if !s.Paused {
		return nil
	}
	if err := s.Cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return err
	}
	s.Paused = false
	return nil
}

// Stop kills server process.
func (s *Server) Stop() error {
	if s.Paused {
		s.Resume()
	}
	if s.Cmd == nil {
		return nil
	}
	defer time.Sleep(10 * time.Millisecond)
	p := s.Cmd
	s.Cmd = nil
	defer p.Wait()
	return p.Process.Kill()
}

// Do sends single command to server through fresh connection.
func (s *Server) Do(cmd string, args ...interface{}) (interface{}, error) {
	return Do(s.Addr(), cmd, args...)
}
