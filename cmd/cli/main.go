package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type item struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type model struct {
	baseURL    string
	categories []category
	items      []item
	selected   int
	status     string
	busy       bool
}

func initialModel(baseURL string) model {
	return model{baseURL: baseURL, status: "Loading catalogue...", busy: true}
}

func (m model) Init() tea.Cmd {
	return loadCategoriesCmd(m.baseURL)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up":
			if m.selected > 0 {
				m.selected--
			}
		case "down":
			if m.selected < len(m.categories)-1 {
				m.selected++
			}
		case "enter":
			if m.busy || len(m.categories) == 0 {
				return m, nil
			}
			m.busy = true
			m.status = "Loading items..."
			return m, loadItemsCmd(m.baseURL, m.categories[m.selected].Key)
		case "c":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Creating checkout..."
			return m, checkoutCmd(m.baseURL, m.items)
		}
	case categoriesLoaded:
		m.busy = false
		m.categories = msg.categories
		m.status = msg.status
	case itemsLoaded:
		m.busy = false
		m.items = msg.items
		m.status = msg.status
	case checkoutResult:
		m.busy = false
		m.status = msg.status
	}
	return m, nil
}

func (m model) View() string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "Velvet Charms storefront CLI")
	fmt.Fprintf(b, "Server: %s\n\n", m.baseURL)
	fmt.Fprintln(b, "Categories:")
	for i, c := range m.categories {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %s (%s)\n", marker, c.Label, c.Key)
	}
	if len(m.items) > 0 {
		fmt.Fprintln(b, "")
		fmt.Fprintln(b, "Items:")
		for _, it := range m.items {
			fmt.Fprintf(b, "   %s  %s\n", it.Name, it.Price)
		}
	}
	fmt.Fprintln(b, "")
	fmt.Fprintf(b, "Status: %s\n", m.status)
	fmt.Fprintln(b, "\nControls: up/down select, enter to list items, c to checkout the first listed item, q to quit")
	return b.String()
}

type categoriesLoaded struct {
	categories []category
	status     string
}

type itemsLoaded struct {
	items  []item
	status string
}

type checkoutResult struct {
	status string
}

func loadCategoriesCmd(baseURL string) tea.Cmd {
	return func() tea.Msg {
		var resp struct {
			Categories []category `json:"categories"`
		}
		if err := getJSON(baseURL, "/api/catalogue", &resp); err != nil {
			return categoriesLoaded{status: fmt.Sprintf("Catalogue failed: %v", err)}
		}
		return categoriesLoaded{categories: resp.Categories, status: fmt.Sprintf("%d categories", len(resp.Categories))}
	}
}

func loadItemsCmd(baseURL, key string) tea.Cmd {
	return func() tea.Msg {
		var resp struct {
			Items []item `json:"items"`
		}
		if err := getJSON(baseURL, "/api/catalogue/"+key, &resp); err != nil {
			return itemsLoaded{status: fmt.Sprintf("Items failed: %v", err)}
		}
		return itemsLoaded{items: resp.Items, status: fmt.Sprintf("%d items in %s", len(resp.Items), key)}
	}
}

func checkoutCmd(baseURL string, items []item) tea.Cmd {
	return func() tea.Msg {
		cart := []map[string]any{{"name": "Sample Candle", "price": 12.50, "qty": 2}}
		if len(items) > 0 && items[0].Price != "" {
			cart = []map[string]any{{"name": items[0].Name, "price": items[0].Price, "qty": 1}}
		}
		approval, err := doCheckout(baseURL, map[string]any{"items": cart, "shipping": 5})
		if err != nil {
			return checkoutResult{status: fmt.Sprintf("Checkout failed: %v", err)}
		}
		return checkoutResult{status: "Checkout OK, approve at " + approval}
	}
}

func getJSON(baseURL, path string, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}

func doCheckout(baseURL string, payload any) (string, error) {
	data, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	url := strings.TrimRight(baseURL, "/") + "/order-creation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	var out struct {
		ApprovalURL *string `json:"approvalUrl"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if out.ApprovalURL == nil {
		return "(no approval link)", nil
	}
	return *out.ApprovalURL, nil
}

func main() {
	runCmd := flag.String("run", "", "run non-interactively: categories|checkout")
	baseURL := flag.String("base-url", getenv("STOREFRONT_BASE_URL", "http://localhost:8080"), "storefront base URL")
	flag.Parse()

	switch *runCmd {
	case "":
	case "categories":
		res := loadCategoriesCmd(*baseURL)().(categoriesLoaded)
		fmt.Println(res.status)
		for _, c := range res.categories {
			fmt.Printf("%s\t%s\n", c.Key, c.Label)
		}
		return
	case "checkout":
		fmt.Println(checkoutCmd(*baseURL, nil)().(checkoutResult).status)
		return
	default:
		fmt.Println("unknown -run value:", *runCmd)
		os.Exit(2)
	}

	p := tea.NewProgram(initialModel(*baseURL))
	if _, err := p.Run(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
