package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/downfa11-org/go-backup/pkg/client"
	"github.com/downfa11-org/go-backup/pkg/config"
	"github.com/downfa11-org/go-backup/pkg/controller"
	"github.com/downfa11-org/go-backup/pkg/session"
	"github.com/downfa11-org/go-backup/pkg/transport"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}

	c := client.NewMultiBackupClient(cfg.MaxBackupHosts)
	defer c.Close()

	opts := transport.Options{DialTimeout: cfg.DialTimeout(), IOTimeout: cfg.IOTimeout()}
	for _, addr := range cfg.BackupAddrs {
		t, err := transport.Dial(addr, opts)
		if err != nil {
			fmt.Println("Failed to connect:", err)
			os.Exit(1)
		}
		if err := c.AddHost(t, addr); err != nil {
			fmt.Println("Skipping backup:", err)
		}
	}

	s := session.New(c, cfg.RPCWindowSize)
	defer s.Close()
	ch := controller.NewCommandHandler(s)

	fmt.Printf("Connected to %d backup(s), session %s. Type HELP for commands.\n", c.Hosts(), s.ID())
	fmt.Println("")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.EqualFold(strings.TrimSpace(line), "EXIT") {
			break
		}
		if result := ch.HandleCommand(line); result != "" {
			fmt.Println(result)
		}
	}
}
