// Package server exposes HTTP handlers, including WebSocket upgrades, the
// read-only status endpoints, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, opens a hub session, and runs the client's read/write pumps until
// the connection ends.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	if !s.trackClient() {
		http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
		return
	}
	defer s.clients.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	session, err := s.hub.Connect(r.Context())
	if err != nil {
		s.logger.Error("hub rejected connection", "addr", r.RemoteAddr, "error", err)
		_ = conn.Close()
		return
	}

	client := NewClient(conn, s.hub, session, r.RemoteAddr, s.cfg.MaxMessageSize, s.logger)

	// The handler's own count is still held, so this Add cannot race Wait.
	s.clients.Add(1)
	go func() {
		defer s.clients.Done()
		client.writePump()
	}()
	client.readPump(r.Context())
}

// HealthHandler reports the service status with the joined user and message counts.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	stats := s.hub.Stats()
	s.writeJSON(w, HealthResponse{
		Status:         "OK",
		ConnectedUsers: stats.ConnectedUsers,
		TotalMessages:  stats.TotalMessages,
	})
}

// UsersHandler lists the joined users.
func (s *Server) UsersHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.hub.Users())
}

// MessagesHandler returns the whole message log.
func (s *Server) MessagesHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.hub.Messages())
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("error writing JSON response", "error", err)
	}
}

// IndexHandler returns a plain text banner.
func IndexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running!")
}

// TestPageHandler serves an HTML test page for testing WebSocket functionality.
// It provides a simple web interface to join under a name, send messages,
// and watch presence and typing notifications.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		s.logger.Warn("error writing HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Relay Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:disabled { background-color: #999; }
        .system { color: gray; font-style: italic; }
        #typing { color: gray; height: 1.2em; }
    </style>
</head>
<body>
    <h1>Chat Relay Test</h1>

    <div>
        <input type="text" id="nameInput" placeholder="Your name...">
        <button id="joinButton" onclick="join()">Join</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="users"></div>
    <div id="messages"></div>
    <div id="typing"></div>

    <script>
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/ws');
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const typingDiv = document.getElementById('typing');
        let typingTimer = null;

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function addMessage(msg) {
            const el = document.createElement('div');
            if (msg.type === 'system') {
                el.className = 'system';
                el.textContent = msg.content;
            } else {
                el.textContent = msg.sender + ': ' + msg.content;
            }
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        ws.onmessage = function(frame) {
            const env = JSON.parse(frame.data);
            switch (env.event) {
            case 'messages':
                messagesDiv.innerHTML = '';
                env.data.forEach(addMessage);
                messageInput.disabled = false;
                document.getElementById('sendButton').disabled = false;
                break;
            case 'message':
                addMessage(env.data);
                break;
            case 'users':
                document.getElementById('users').textContent =
                    'Online: ' + env.data.map(u => u.fullName).join(', ');
                break;
            case 'userTyping':
                typingDiv.textContent = env.data.isTyping ? env.data.user + ' is typing...' : '';
                break;
            case 'error':
                alert(env.data.message);
                break;
            }
        };

        ws.onclose = function() {
            addMessage({type: 'system', content: 'Connection closed'});
            messageInput.disabled = true;
        };

        function join() {
            emit('join', {fullName: document.getElementById('nameInput').value});
        }

        function sendMessage() {
            emit('message', {content: messageInput.value});
            emit('typing', false);
            messageInput.value = '';
        }

        messageInput.addEventListener('input', function() {
            emit('typing', true);
            clearTimeout(typingTimer);
            typingTimer = setTimeout(function() { emit('typing', false); }, 1000);
        });

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
