// Command salesline is an interactive CLI client for the sales server.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/salesline/salesline/internal/client"
)

func main() {
	addr := flag.String("addr", "localhost:12345", "server address")
	flag.Parse()

	c, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer c.Close()

	fmt.Printf("connected to %s (type 'help')\n", *addr)

	scanner := bufio.NewScanner(os.Stdin)
	for prompt(); scanner.Scan(); prompt() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := run(c, args); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func prompt() {
	fmt.Print("> ")
}

func run(c *client.Client, args []string) error {
	switch args[0] {
	case "help":
		usage()
		return nil

	case "register", "login":
		if len(args) != 3 {
			return fmt.Errorf("usage: %s <username> <password>", args[0])
		}
		var err error
		if args[0] == "register" {
			err = c.Register(args[1], args[2])
		} else {
			err = c.Login(args[1], args[2])
		}
		if err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "logout":
		if err := c.Logout(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "add":
		if len(args) != 4 {
			return fmt.Errorf("usage: add <product> <quantity> <price>")
		}
		qty, err := strconv.ParseInt(args[2], 10, 32)
		if err != nil {
			return fmt.Errorf("bad quantity: %v", err)
		}
		price, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("bad price: %v", err)
		}
		if err := c.AddEvent(args[1], int32(qty), price); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "qty", "volume", "avg", "max":
		if len(args) != 3 {
			return fmt.Errorf("usage: %s <product> <days>", args[0])
		}
		days, err := strconv.ParseInt(args[2], 10, 32)
		if err != nil {
			return fmt.Errorf("bad days: %v", err)
		}
		switch args[0] {
		case "qty":
			v, err := c.QuantitySold(args[1], int32(days))
			if err != nil {
				return err
			}
			fmt.Printf("quantity sold: %d\n", v)
		case "volume":
			v, err := c.SalesVolume(args[1], int32(days))
			if err != nil {
				return err
			}
			fmt.Printf("sales volume: %.2f\n", v)
		case "avg":
			v, err := c.AveragePrice(args[1], int32(days))
			if err != nil {
				return err
			}
			fmt.Printf("average price: %.4f\n", v)
		case "max":
			v, err := c.MaxPrice(args[1], int32(days))
			if err != nil {
				return err
			}
			fmt.Printf("max price: %.2f\n", v)
		}
		return nil

	case "filter":
		if len(args) != 3 {
			return fmt.Errorf("usage: filter <p1,p2,...> <dayOffset>")
		}
		offset, err := strconv.ParseInt(args[2], 10, 32)
		if err != nil {
			return fmt.Errorf("bad dayOffset: %v", err)
		}
		events, err := c.FilterEvents(strings.Split(args[1], ","), int32(offset))
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Printf("%s: %d x %.2f = %.2f @ %d\n", ev.Product, ev.Quantity, ev.Price, ev.TotalValue(), ev.Timestamp)
		}
		fmt.Printf("%d event(s)\n", len(events))
		return nil

	case "simul":
		if len(args) != 3 {
			return fmt.Errorf("usage: simul <product1> <product2>")
		}
		// Runs in the background: the demultiplexer keeps the connection
		// usable while the server holds this request.
		go func(p1, p2 string) {
			ok, err := c.SimultaneousSales(p1, p2)
			if err != nil {
				fmt.Printf("\nsimul %s %s: %v\n", p1, p2, err)
				return
			}
			fmt.Printf("\nsimul %s %s -> %v\n", p1, p2, ok)
		}(args[1], args[2])
		fmt.Println("waiting in background...")
		return nil

	case "consec":
		if len(args) != 2 {
			return fmt.Errorf("usage: consec <n>")
		}
		n, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("bad n: %v", err)
		}
		go func(n int32) {
			product, err := c.ConsecutiveSales(n)
			if err != nil {
				fmt.Printf("\nconsec %d: %v\n", n, err)
				return
			}
			if product == "" {
				fmt.Printf("\nconsec %d -> day ended first\n", n)
				return
			}
			fmt.Printf("\nconsec %d -> %s\n", n, product)
		}(int32(n))
		fmt.Println("waiting in background...")
		return nil

	case "newday":
		if err := c.NewDay(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	default:
		return fmt.Errorf("unknown command %q (try 'help')", args[0])
	}
}

func usage() {
	fmt.Print(`commands:
  register <username> <password>
  login <username> <password>
  logout
  add <product> <quantity> <price>
  qty <product> <days>        total quantity sold
  volume <product> <days>     total revenue
  avg <product> <days>        average price
  max <product> <days>        maximum price
  filter <p1,p2,...> <dayOffset>
  simul <product1> <product2> (blocks in background)
  consec <n>                  (blocks in background)
  newday
  quit
`)
}
