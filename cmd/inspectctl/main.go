// Command inspectctl drives a running inspectord from the terminal.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const usage = `usage: inspectctl [-api URL] <command> [args]

commands:
  status                      show scheduler state
  start | stop                arm or disarm periodic inspection
  run                         inspect now
  interval <minutes>          change the period
  results                     list stored results
  clear                       delete stored results
  checks                      list configured checks
  add-network <name> <url> [method] [alert rule]
  add-page <name> <url> [screenshot]
  add                         prompt for a URL and add it as a network check
  delete <network|page> <id>
  report [-config]            print the export report
  diagnostics                 print daemon diagnostics
  watch                       stream console events
`

type client struct {
	base string
	http *http.Client
}

func main() {
	def := os.Getenv("API_BASE")
	if def == "" {
		def = "http://localhost:8080"
	}
	api := flag.String("api", def, "inspectord base URL")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	c := &client{base: strings.TrimRight(*api, "/"), http: &http.Client{Timeout: 30 * time.Second}}
	if err := c.dispatch(flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *client) dispatch(cmd string, args []string) error {
	switch cmd {
	case "status":
		return c.print(http.MethodGet, "/api/inspection/status", nil)
	case "start":
		return c.print(http.MethodPost, "/api/inspection/start", nil)
	case "stop":
		return c.print(http.MethodPost, "/api/inspection/stop", nil)
	case "run":
		return c.print(http.MethodPost, "/api/inspection/run", nil)
	case "interval":
		if len(args) != 1 {
			return fmt.Errorf("interval needs <minutes>")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("minutes: %w", err)
		}
		return c.print(http.MethodPut, "/api/inspection/interval", map[string]int{"minutes": n})
	case "results":
		return c.print(http.MethodGet, "/api/results", nil)
	case "clear":
		return c.print(http.MethodDelete, "/api/results", nil)
	case "checks":
		return c.print(http.MethodGet, "/api/checks", nil)
	case "add-network":
		if len(args) < 2 {
			return fmt.Errorf("add-network needs <name> <url>")
		}
		body := map[string]string{"name": args[0], "url": args[1]}
		if len(args) > 2 {
			body["method"] = args[2]
		}
		if len(args) > 3 {
			body["alertRule"] = strings.Join(args[3:], " ")
		}
		return c.print(http.MethodPost, "/api/checks/network", body)
	case "add-page":
		if len(args) < 2 {
			return fmt.Errorf("add-page needs <name> <url>")
		}
		shot := len(args) > 2 && args[2] == "screenshot"
		return c.print(http.MethodPost, "/api/checks/page", map[string]any{"name": args[0], "url": args[1], "screenshot": shot})
	case "add":
		return c.addInteractive(os.Stdin)
	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("delete needs <network|page> <id>")
		}
		return c.print(http.MethodDelete, "/api/checks/"+url.PathEscape(args[0])+"/"+url.PathEscape(args[1]), nil)
	case "report":
		path := "/api/report"
		if len(args) > 0 && args[0] == "-config" {
			path += "?include_config=true"
		}
		return c.print(http.MethodGet, path, nil)
	case "diagnostics":
		return c.print(http.MethodGet, "/api/diagnostics", nil)
	case "watch":
		return c.watch(os.Stdout)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *client) addInteractive(in io.Reader) error {
	reader := bufio.NewReader(in)
	fmt.Print("Enter a site URL to inspect (e.g., https://example.com): ")
	raw, _ := reader.ReadString('\n')
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid URL")
	}
	return c.print(http.MethodPost, "/api/checks/network", map[string]string{"name": u.Hostname(), "url": raw})
}

func (c *client) do(method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func (c *client) print(method, path string, body any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		raw = pretty.Bytes()
	}
	fmt.Println(strings.TrimSpace(string(raw)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("API returned status: %s", resp.Status)
	}
	return nil
}

func (c *client) watch(out io.Writer) error {
	req, err := http.NewRequest(http.MethodGet, c.base+"/api/events", nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("contacting API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status: %s", resp.Status)
	}
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			fmt.Fprintln(out, data)
		}
	}
	return sc.Err()
}
