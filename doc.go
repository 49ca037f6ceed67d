// Package livesession provides a STOMP-over-WebSocket client for live quiz
// sessions, where hosts and participants receive real-time updates.
//
// One WebSocket carries the whole session. The package handles the
// CONNECT/CONNECTED handshake, multiplexes any number of destinations over
// the socket, and buffers sends issued before the handshake completes. It
// exposes three operations:
//
//   - Connected: whether the handshake has completed
//   - Subscribe: register a callback for a destination
//   - Send: publish a JSON payload to a destination
//
// Neither Subscribe nor Send fails because the session is not connected
// yet: subscriptions are issued and sends are flushed, in order, as soon as
// the broker answers CONNECT. Protocol failures never reach callers; they
// go to the ErrorHandler given to NewSession.
//
// Basic usage:
//
//	s, err := livesession.NewSession(livesession.Config{
//	    URL:        "wss://quiz.example.com/ws",
//	    SessionKey: "ABC123",
//	    Token:      token,
//	}, livesession.LogErrors(log.Default()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	s.Subscribe(livesession.TopicDestination("ABC123", "participants"),
//	    func(msg *livesession.Message) {
//	        var p Participants
//	        if err := msg.UnmarshalBody(&p); err == nil {
//	            render(p)
//	        }
//	    },
//	)
//	s.Send(livesession.AppDestination("ABC123", "join"), map[string]string{"nickname": "ada"})
//
//	if err := s.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
package livesession
