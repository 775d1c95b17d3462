// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const healthText = "Auction chat relay is running!"

// WebSocketHandler upgrades the request, registers the new client and starts
// its read/write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	client := NewClient(conn, r.RemoteAddr, s.cfg.SendBuffer, s.logger)
	s.registry.Register(client)
	s.startPumps(client)
}

// RootHandler serves WebSocket upgrades on "/" so browser clients can dial
// the bare host, and answers plain requests with the health text.
func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.WebSocketHandler(w, r)
		return
	}
	HealthHandler(w, r)
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, healthText)
}

// TestPageHandler serves an HTML page for joining an auction room and
// sending chat messages by hand.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		s.logger.Warn("Error writing HTML response", zap.Error(err))
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Auction Chat Relay Test</title>
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
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        .other { color: #999; }
    </style>
</head>
<body>
    <h1>Auction Chat Relay Test</h1>
    <div>
        <input type="text" id="auctionId" placeholder="Auction id" value="1">
        <input type="text" id="address" placeholder="Wallet address" value="0x0000">
        <button onclick="join()">Join</button>
    </div>
    <div id="messages"></div>
    <div>
        <input type="text" id="content" placeholder="Type a message..." size="50">
        <button onclick="send()">Send</button>
    </div>

    <script>
        const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(proto + location.host + '/ws');
        const messages = document.getElementById('messages');
        let room = null;

        function line(text, cls) {
            const el = document.createElement('div');
            el.textContent = text;
            if (cls) el.className = cls;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function show(m) {
            const cls = m.auctionId === room ? '' : 'other';
            line('[' + m.auctionId + '] ' + m.address + ': ' + m.content, cls);
        }

        ws.onmessage = function(event) {
            const data = JSON.parse(event.data);
            if (data.type === 'history') {
                messages.innerHTML = '';
                data.messages.forEach(show);
            } else if (data.type === 'message') {
                show(data);
            }
        };
        ws.onclose = function() { line('Connection closed'); };

        function join() {
            room = document.getElementById('auctionId').value;
            ws.send(JSON.stringify({
                type: 'join',
                auctionId: room,
                address: document.getElementById('address').value
            }));
        }

        function send() {
            const input = document.getElementById('content');
            if (!input.value.trim() || room === null) return;
            ws.send(JSON.stringify({
                type: 'message',
                auctionId: room,
                address: document.getElementById('address').value,
                content: input.value,
                timestamp: new Date().toISOString()
            }));
            input.value = '';
        }
    </script>
</body>
</html>`
