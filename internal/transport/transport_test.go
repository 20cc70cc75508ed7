package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/skylinewire/streamd/internal/wire"
)

var testKey = []byte("0123456789abcdef")

func TestUDPRoundTrip(t *testing.T) {
	const port = 39201
	var (
		server *UDPContext
		errs   [2]error
		wg     sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		server, errs[0] = CreateUDP(Options{
			Role: RoleServer, Port: port,
			RecvTimeout: time.Second, HandshakeTimeout: 2 * time.Second,
			Key: testKey,
		})
	}()

	var client *UDPContext
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond) // let the server start listening
		client, errs[1] = CreateUDP(Options{
			Role: RoleClient, Destination: "127.0.0.1:39201",
			RecvTimeout: time.Second, HandshakeTimeout: 2 * time.Second,
			Key: testKey,
		})
	}()
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("CreateUDP errors: server=%v client=%v", errs[0], errs[1])
	}
	defer server.Destroy()
	defer client.Destroy()

	want := wire.Packet{Type: wire.PacketMessage, ID: 7, Index: 0, NumIndices: 1, Data: []byte("hello")}
	if err := client.SendPacket(want); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}

	got, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if got == nil {
		t.Fatal("ReadPacket returned nil packet")
	}
	if got.ID != want.ID || string(got.Data) != string(want.Data) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestTCPRoundTrip(t *testing.T) {
	const port = 39202
	var (
		server *TCPContext
		errs   [2]error
		wg     sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		server, errs[0] = CreateTCP(Options{
			Role: RoleServer, Port: port,
			RecvTimeout: time.Second, HandshakeTimeout: 2 * time.Second,
			Key: testKey,
		})
	}()

	var client *TCPContext
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		client, errs[1] = CreateTCP(Options{
			Role: RoleClient, Destination: "127.0.0.1:39202",
			RecvTimeout: time.Second, HandshakeTimeout: 2 * time.Second,
			Key: testKey,
		})
	}()
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("CreateTCP errors: server=%v client=%v", errs[0], errs[1])
	}
	defer server.Destroy()
	defer client.Destroy()

	want := wire.Packet{Type: wire.PacketMessage, ID: 3, Index: 0, NumIndices: 1, Data: []byte("clipboard payload")}
	if err := client.SendPacket(want); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}

	got, err := server.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if got == nil || string(got.Data) != string(want.Data) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestUDPHandshakeAbortsOnKeyMismatch(t *testing.T) {
	const port = 39203
	var (
		errs [2]error
		wg   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = CreateUDP(Options{
			Role: RoleServer, Port: port,
			RecvTimeout: time.Second, HandshakeTimeout: 500 * time.Millisecond,
			Key: testKey,
		})
	}()
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		_, errs[1] = CreateUDP(Options{
			Role: RoleClient, Destination: "127.0.0.1:39203",
			RecvTimeout: time.Second, HandshakeTimeout: 500 * time.Millisecond,
			Key: []byte("fedcba9876543210"),
		})
	}()
	wg.Wait()

	if errs[0] == nil && errs[1] == nil {
		t.Fatal("expected handshake to fail on mismatched keys")
	}
}
