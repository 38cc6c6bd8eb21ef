package handlers

import "github.com/1314wu/server-p2p-signal/service/signal"

// RegisterAll installs the protocol handlers on the server's dispatcher.
func RegisterAll(s *signal.Server) {
	s.Disp().Register(NewAuthHandler())
	s.Disp().Register(NewForwardHandler())
}
