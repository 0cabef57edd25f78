package link

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// joinCommand is the NetworkManager CLI used to join an access point.
const joinCommand = "nmcli"

// Wireless joins an access point through NetworkManager and then waits for
// the interface like Interface does.
//
// The join creates an autoconnect profile, so after boot NetworkManager
// rejoins on its own and Up is not needed again.
type Wireless struct {
	iface    *Interface
	ssid     string
	password string
	timeout  time.Duration

	// run executes the join command and returns its combined output.
	// Replaced in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewWireless creates a link that joins ssid on the named interface.
//
// Parameters:
//   - name: Wireless interface, for example "wlan0"
//   - ssid, password: Network to join; an empty password joins an open network
//   - timeout: Bound on the join and, separately, on the interface wait
//   - poll: Delay between interface checks after the join
func NewWireless(name, ssid, password string, timeout, poll time.Duration) *Wireless {
	return &Wireless{
		iface:    NewInterface(name, timeout, poll),
		ssid:     ssid,
		password: password,
		timeout:  timeout,
		run:      runCommand,
	}
}

// Name returns the interface name.
func (w *Wireless) Name() string { return w.iface.Name() }

// SSID returns the network the link joins.
func (w *Wireless) SSID() string { return w.ssid }

// Up implements Link. An interface that is already up is not rejoined.
func (w *Wireless) Up(ctx context.Context) error {
	if w.iface.IsUp() {
		return nil
	}

	joinCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		joinCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	out, err := w.run(joinCtx, joinCommand, w.joinArgs()...)
	if err != nil {
		detail := strings.TrimSpace(string(out))
		if detail == "" {
			detail = err.Error()
		}
		return fmt.Errorf("%w: joining %q on %s: %s", ErrUnavailable, w.ssid, w.iface.Name(), detail)
	}

	return w.iface.Up(ctx)
}

// IsUp implements Link.
func (w *Wireless) IsUp() bool {
	return w.iface.IsUp()
}

func (w *Wireless) joinArgs() []string {
	wait := int(w.timeout / time.Second)
	if wait < 1 {
		wait = 1
	}
	args := []string{"--wait", strconv.Itoa(wait), "device", "wifi", "connect", w.ssid}
	if w.password != "" {
		args = append(args, "password", w.password)
	}
	return append(args, "ifname", w.iface.Name())
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput() // #nosec G204 -- fixed binary, arguments from config
}
