package commands

import (
	"bufio"
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/skycoin/skycoin/src/util/logging"
	"github.com/spf13/cobra"

	"github.com/meshwire/meshwire/internal/udplink"
	"github.com/meshwire/meshwire/pkg/api"
	"github.com/meshwire/meshwire/pkg/frame"
	"github.com/meshwire/meshwire/pkg/mesh"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a mesh node",
	Long: `Run a mesh node over UDP multicast.

Lines read from stdin are sent into the mesh:
  bcast <text>            flood <text> to every node
  send <addr> <text>      unicast <text> to <addr>`,
	Run: func(_ *cobra.Command, _ []string) {
		startLogger()
		conf := readConfig()
		if conf.LogLevel != "" {
			lvl, err := logging.LevelFromString(conf.LogLevel)
			if err != nil {
				logger.Fatalf("Invalid log level %q: %s", conf.LogLevel, err)
			}
			logging.SetLevel(lvl)
		}

		meshConf, err := conf.MeshConfig()
		if err != nil {
			logger.Fatalf("Bad config: %s", err)
		}

		linkConf := udplink.Config{Interface: conf.Interface, Group: conf.Group}
		if conf.Addr != "" {
			addr, err := frame.ParseAddr(conf.Addr)
			if err != nil {
				logger.Fatalf("Bad addr override: %s", err)
			}
			linkConf.Addr = addr
		}

		l, err := udplink.New(linkConf)
		if err != nil {
			logger.Fatalf("Failed to bring up link: %s", err)
		}

		node, err := mesh.New(meshConf, l)
		if err != nil {
			logger.Fatalf("Failed to initialize node: %s", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			if err := node.Serve(ctx); err != nil && err != context.Canceled {
				logger.Fatalf("Worker stopped: %s", err)
			}
		}()

		if conf.APIAddr != "" {
			go func() {
				logger.Infof("Status API on %s", conf.APIAddr)
				if err := http.ListenAndServe(conf.APIAddr, api.New(node, meshConf.LogStore)); err != nil {
					logger.Errorf("API server: %s", err)
				}
			}()
		}

		_, events := node.Subscribe()
		go func() {
			for ev := range events {
				switch {
				case ev.Recv != nil:
					logger.Infof("recv from %s: %s", ev.Recv.Addr, ev.Recv.Payload)
				case ev.Send != nil:
					logger.Infof("send to %s (%08x): %s", ev.Send.Addr, ev.Send.MessageID, ev.Send.Status)
				}
			}
		}()

		go readStdin(node)

		waitOsSignals()
		if err := node.Close(); err != nil {
			logger.Errorf("Failed to close node: %s", err)
		}
	},
}

func readStdin(node *mesh.Network) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		fields := strings.SplitN(sc.Text(), " ", 3)
		switch {
		case len(fields) >= 2 && fields[0] == "bcast":
			payload := strings.Join(fields[1:], " ")
			if _, err := node.Broadcast([]byte(payload)); err != nil {
				logger.Warnf("broadcast: %s", err)
			}
		case len(fields) == 3 && fields[0] == "send":
			target, err := frame.ParseAddr(fields[1])
			if err != nil {
				logger.Warnf("bad target: %s", err)
				continue
			}
			if _, err := node.Send(target, []byte(fields[2])); err != nil {
				logger.Warnf("send: %s", err)
			}
		default:
			logger.Warn("usage: bcast <text> | send <addr> <text>")
		}
	}
}

func waitOsSignals() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}...)
	<-ch
}
