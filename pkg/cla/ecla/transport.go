// SPDX-FileCopyrightText: 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ecla

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn implements wireConn atop a *websocket.Conn, exchanging one JSON Packet per text
// message.
type wsConn struct {
	conn *websocket.Conn
	mtx  sync.Mutex
}

func newWsConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadPacket() (Packet, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return Packet{}, err
	}
	return unmarshalPacket(data)
}

func (c *wsConn) WritePacket(p Packet) error {
	data, err := marshalPacket(p)
	if err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// tcpConn implements wireConn atop a net.Conn, framing each JSON Packet with a four byte
// big-endian length prefix.
type tcpConn struct {
	conn   net.Conn
	reader *bufio.Reader
	mtx    sync.Mutex
}

func newTcpConn(conn net.Conn) *tcpConn {
	return &tcpConn{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *tcpConn) ReadPacket() (Packet, error) {
	var length uint32
	if err := binary.Read(c.reader, binary.BigEndian, &length); err != nil {
		return Packet{}, err
	}
	if length == 0 || length > 16*1024*1024 {
		return Packet{}, fmt.Errorf("ecla: implausible packet length %d", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(c.reader, data); err != nil {
		return Packet{}, err
	}

	return unmarshalPacket(data)
}

func (c *tcpConn) WritePacket(p Packet) error {
	data, err := marshalPacket(p)
	if err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if err := binary.Write(c.conn, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err = c.conn.Write(data)
	return err
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}
