package player

import (
	"fmt"
	"os"
	"testing"
)

// TestLivePlayerStatus connects to a running player daemon and prints its
// status. Skipped if the socket doesn't exist.
func TestLivePlayerStatus(t *testing.T) {
	sockPath := SocketPath()
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("player not running (no socket at", sockPath, ")")
	}

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	st, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	fmt.Printf("Status: source=%q time=%.2f duration=%.2f playing=%v\n",
		st.Source, st.Time, st.Duration, st.Playing)

	sub, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect for subscribe: %v", err)
	}
	defer sub.Close()
	if err := sub.Subscribe(EventTimeUpdate); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	fmt.Println("Subscribe: ok")
}
