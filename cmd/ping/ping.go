// Command ping joins a mesh and exchanges small payloads with every
// ready peer, a smoke test for matchmaker and data plane alike.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trobanga/netcode"
)

func main() {
	var (
		address  string
		port     uint16
		user     string
		password string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:           "ping",
		Short:         "Join a mesh and ping every ready peer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			socket, err := netcode.Open(netcode.Config{
				Address:  address,
				Port:     port,
				User:     user,
				Password: password,
				Log:      logrus.NewEntry(logrus.StandardLogger()),
			})
			if err != nil {
				return err
			}
			defer socket.Close()
			fmt.Println("connected as", socket.LocalID())

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for seq := 0; ; seq++ {
				select {
				case <-stop:
					return nil
				case <-ticker.C:
				}

				for _, packet := range socket.ReceiveAll() {
					fmt.Printf("%s: %s\n", packet.Peer, packet.Payload)
				}
				payload := []byte(fmt.Sprintf("ping %d", seq))
				for _, peer := range socket.ReadyPeers() {
					socket.Send(netcode.Packet{Peer: peer, Payload: payload})
				}
			}
		},
	}

	cmd.Flags().StringVar(&address, "address", "127.0.0.1", "matchmaker host")
	cmd.Flags().Uint16Var(&port, "port", 3657, "matchmaker port")
	cmd.Flags().StringVar(&user, "user", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "ping interval")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
