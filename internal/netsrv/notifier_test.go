package netsrv

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maemo32/awgserver/playlist"
)

func TestStatusHub_SendsInitialTwoLines(t *testing.T) {
	hub := NewStatusHub(nil)

	client, server := net.Pipe()
	defer client.Close()
	go hub.HandleSubscriber(server)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(client)

	line0, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "LIST0:IDLE\n", line0)

	line1, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "LIST1:IDLE\n", line1)
}

func TestStatusHub_SuppressesDuplicateState(t *testing.T) {
	hub := NewStatusHub(nil)

	client, server := net.Pipe()
	defer client.Close()
	go hub.HandleSubscriber(server)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(client)
	_, err := reader.ReadString('\n') // LIST0:IDLE
	require.NoError(t, err)
	_, err = reader.ReadString('\n') // LIST1:IDLE
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		hub.Publish(0, playlist.StateIdle) // duplicate of initial state: must be suppressed
		hub.Publish(0, playlist.StateLoading)
		close(done)
	}()

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "LIST0:LOADING\n", line, "the duplicate IDLE publish must not produce a line")
	<-done
}

func TestStatusHub_ReplacesPriorSubscriber(t *testing.T) {
	hub := NewStatusHub(nil)

	firstClient, firstServer := net.Pipe()
	go hub.HandleSubscriber(firstServer)
	firstClient.SetReadDeadline(time.Now().Add(2 * time.Second))
	firstReader := bufio.NewReader(firstClient)
	_, err := firstReader.ReadString('\n')
	require.NoError(t, err)
	_, err = firstReader.ReadString('\n')
	require.NoError(t, err)

	secondClient, secondServer := net.Pipe()
	defer secondClient.Close()
	go hub.HandleSubscriber(secondServer)

	secondClient.SetReadDeadline(time.Now().Add(2 * time.Second))
	secondReader := bufio.NewReader(secondClient)
	line0, err := secondReader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "LIST0:IDLE\n", line0)

	firstClient.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = firstReader.ReadString('\n')
	assert.Error(t, err, "the replaced subscriber's connection must be closed")
}
