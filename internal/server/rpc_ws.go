package server

import (
	"context"
	"net/http"

	cws "github.com/coder/websocket"
	"github.com/creachadair/jrpc2"
)

// serveWS runs a dedicated jrpc2 server for one WebSocket connection until
// the peer hangs up or the request context ends.
func (rs *RPCServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxRequestBody)
	ch := &wsChannel{conn: conn, ctx: r.Context()}
	if err := jrpc2.NewServer(rs.methods, nil).Start(ch).Wait(); err != nil {
		conn.Close(cws.StatusInternalError, "rpc server stopped")
	}
}

// wsChannel carries one JSON-RPC message per text frame.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}
