// Package main runs the interactive storefront client: session management,
// anonymous and server-backed carts, and payment checkout against the
// configured backend.
package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/tresse/storefront/internal/address"
	"github.com/tresse/storefront/internal/api"
	"github.com/tresse/storefront/internal/cart"
	"github.com/tresse/storefront/internal/checkout"
	"github.com/tresse/storefront/internal/config"
	"github.com/tresse/storefront/internal/credstore"
	"github.com/tresse/storefront/internal/logger"
	"github.com/tresse/storefront/internal/models"
	"github.com/tresse/storefront/internal/session"
	"github.com/tresse/storefront/internal/transport"
)

var (
	version   string
	buildDate string
)

// app bundles the wired client subsystems for the REPL.
type app struct {
	sess       *session.Manager
	auth       *session.AuthClient
	local      *cart.LocalCart
	remote     *cart.RemoteCart
	reconciler *cart.Reconciler
	orch       *checkout.Orchestrator
	orders     *checkout.OrdersClient
	profile    *checkout.ProfileDraft
	addr       *address.Client
	log        *zap.Logger
}

func main() {
	options := config.Parse()

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Println("failed to init logger:", err)
		os.Exit(1)
	}
	zl := log.Log

	creds := credstore.New(options.StateDir, zl)
	sess := session.NewManager(creds, zl)

	tr := transport.New(nil, creds, options.BaseURL, zl)
	tr.OnInvalidate(sess.Invalidate)

	apiClient := api.New(tr.Client(), options.BaseURL)
	local := cart.NewLocalCart(options.StateDir, zl)
	remote := cart.NewRemoteCart(apiClient, zl)

	a := &app{
		sess:       sess,
		auth:       session.NewAuthClient(apiClient),
		local:      local,
		remote:     remote,
		reconciler: cart.NewReconciler(local, remote, zl),
		orch: checkout.NewOrchestrator(apiClient,
			&checkout.HTTPProcessor{URL: options.BaseURL + "/stub/confirm"},
			local, options.StateDir, zl),
		orders:  checkout.NewOrdersClient(apiClient),
		profile: checkout.NewProfileDraft(options.StateDir, zl),
		addr:    address.New(nil, cmp.Or(options.AddressURL, options.BaseURL), zl),
		log:     zl,
	}

	ctx := context.Background()

	sess.RestoreFromStorage()
	if sess.IsLoggedIn() {
		a.watchInvalidation()
		if err := a.reconciler.OnSessionEstablished(ctx); err != nil {
			zl.Warn("cart reconciliation on startup failed", zap.Error(err))
		}
	}

	a.repl(ctx)
}

// watchInvalidation prints a notice once the current session dies and
// re-arms the cart merge for the next login.
func (a *app) watchInvalidation() {
	ch := a.sess.Invalidated()
	go func() {
		<-ch
		a.reconciler.Reset()
		fmt.Println("Session expired. Please log in again.")
	}()
}

// repl runs the interactive shell loop.
func (a *app) repl(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("storefront> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		switch args[0] {
		case "help":
			fmt.Println(`Available commands:
  login <email> <password>         register <email> <password> <first> <last>
  logout  whoami
  cart                             add <productID> <sizeID> <qty> [stock]
  qty <productID> <sizeID> <n>     rm <productID> <sizeID>
  profile <name>|<addr>|<city>|<state>|<postal>|<country>
  suggest <query>
  checkout  finalize  orders  cancel <orderID>
  exit`)
		case "login":
			if len(args) < 3 {
				fmt.Println("Usage: login <email> <password>")
				continue
			}
			a.login(ctx, args[1], args[2])
		case "register":
			if len(args) < 5 {
				fmt.Println("Usage: register <email> <password> <first> <last>")
				continue
			}
			a.register(ctx, args[1], args[2], args[3], args[4])
		case "logout":
			a.sess.Logout()
			a.reconciler.Reset()
			fmt.Println("Logged out")
		case "whoami":
			if user, ok := a.sess.CurrentUser(); ok {
				fmt.Printf("%s %s <%s>\n", user.FirstName, user.LastName, user.Email)
				if exp, ok := a.sess.TokenExpiry(); ok {
					fmt.Println("token expires:", exp.Format("15:04:05"))
				}
			} else {
				fmt.Println("Not logged in")
			}
		case "cart":
			a.showCart(ctx)
		case "add":
			a.addLine(ctx, args[1:])
		case "qty":
			a.setQuantity(ctx, args[1:])
		case "rm":
			a.removeLine(ctx, args[1:])
		case "profile":
			a.setProfile(strings.TrimSpace(strings.TrimPrefix(line, "profile")))
		case "suggest":
			a.suggest(ctx, strings.TrimSpace(strings.TrimPrefix(line, "suggest")))
		case "checkout":
			a.checkout(ctx)
		case "finalize":
			a.finalize(ctx)
		case "orders":
			a.listOrders(ctx)
		case "cancel":
			if len(args) < 2 {
				fmt.Println("Usage: cancel <orderID>")
				continue
			}
			a.cancelOrder(ctx, args[1])
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func (a *app) login(ctx context.Context, email, password string) {
	grant, err := a.auth.Login(ctx, email, password)
	if err != nil {
		fmt.Println("Login failed:", err)
		return
	}
	if err := a.sess.Login(grant.Access, grant.Refresh, grant.User); err != nil {
		fmt.Println("Login rejected:", err)
		return
	}
	a.watchInvalidation()
	if err := a.reconciler.OnSessionEstablished(ctx); err != nil {
		fmt.Println("Cart sync incomplete:", err)
	}
	fmt.Println("Logged in as", grant.User.Email)
}

func (a *app) register(ctx context.Context, email, password, first, last string) {
	grant, err := a.auth.Register(ctx, session.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		fmt.Println("Registration failed:", err)
		return
	}
	if err := a.sess.Login(grant.Access, grant.Refresh, grant.User); err != nil {
		fmt.Println("Registration rejected:", err)
		return
	}
	a.watchInvalidation()
	if err := a.reconciler.OnSessionEstablished(ctx); err != nil {
		fmt.Println("Cart sync incomplete:", err)
	}
	fmt.Println("Registered as", grant.User.Email)
}

func (a *app) showCart(ctx context.Context) {
	if a.sess.IsLoggedIn() {
		if _, err := a.remote.Fetch(ctx); err != nil {
			fmt.Println("Cart fetch failed:", err)
		}
	}
	lines := a.reconciler.AuthoritativeLines(a.sess.IsLoggedIn())
	if len(lines) == 0 {
		fmt.Println("Cart is empty")
		return
	}
	for _, l := range lines {
		fmt.Printf("product %d size %d (%s %s) x%d @ %s\n",
			l.ProductID, l.ProductSizeID, l.ProductName, l.SizeName, l.Quantity, l.UnitPrice)
	}
}

func (a *app) addLine(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Println("Usage: add <productID> <sizeID> <qty> [stock]")
		return
	}
	productID, _ := strconv.ParseInt(args[0], 10, 64)
	sizeID, _ := strconv.ParseInt(args[1], 10, 64)
	qty, _ := strconv.Atoi(args[2])
	if qty < 1 {
		fmt.Println("Quantity must be at least 1")
		return
	}

	if a.sess.IsLoggedIn() {
		line, err := a.remote.AddLine(ctx, sizeID, qty)
		if err != nil {
			fmt.Println("Add failed:", err)
			return
		}
		fmt.Printf("Added: %s %s x%d\n", line.ProductName, line.SizeName, line.Quantity)
		return
	}

	stock := 0
	if len(args) > 3 {
		stock, _ = strconv.Atoi(args[3])
	}
	a.local.AddLine(models.CartLine{
		ProductID:     productID,
		ProductSizeID: sizeID,
		Quantity:      qty,
		StockCap:      stock,
	})
	fmt.Println("Added to local cart")
}

func (a *app) setQuantity(ctx context.Context, args []string) {
	if len(args) < 3 {
		fmt.Println("Usage: qty <productID> <sizeID> <n>")
		return
	}
	productID, _ := strconv.ParseInt(args[0], 10, 64)
	sizeID, _ := strconv.ParseInt(args[1], 10, 64)
	qty, _ := strconv.Atoi(args[2])
	if qty < 1 {
		fmt.Println("Quantity must be at least 1; use rm to remove the line")
		return
	}

	if a.sess.IsLoggedIn() {
		for _, l := range a.remote.Lines() {
			if l.ProductID == productID && l.ProductSizeID == sizeID {
				if _, err := a.remote.UpdateLine(ctx, l.LineID, qty); err != nil {
					fmt.Println("Update failed:", err)
				}
				return
			}
		}
		fmt.Println("Line not found")
		return
	}
	a.local.SetQuantity(productID, sizeID, qty)
}

func (a *app) removeLine(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: rm <productID> <sizeID>")
		return
	}
	productID, _ := strconv.ParseInt(args[0], 10, 64)
	sizeID, _ := strconv.ParseInt(args[1], 10, 64)

	if a.sess.IsLoggedIn() {
		for _, l := range a.remote.Lines() {
			if l.ProductID == productID && l.ProductSizeID == sizeID {
				if err := a.remote.RemoveLine(ctx, l.LineID); err != nil {
					fmt.Println("Remove failed:", err)
				}
				return
			}
		}
		fmt.Println("Line not found")
		return
	}
	a.local.RemoveLine(productID, sizeID)
}

func (a *app) setProfile(raw string) {
	parts := strings.Split(raw, "|")
	if len(parts) < 6 {
		fmt.Println("Usage: profile <name>|<addr>|<city>|<state>|<postal>|<country>")
		return
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	a.profile.Set(models.BillingDetails{
		FullName:   parts[0],
		Address:    parts[1],
		City:       parts[2],
		State:      parts[3],
		PostalCode: parts[4],
		Country:    parts[5],
	})
	fmt.Println("Profile saved")
}

func (a *app) suggest(ctx context.Context, query string) {
	candidates, err := a.addr.Suggest(ctx, query)
	if err != nil {
		fmt.Println("Suggestions unavailable right now")
		return
	}
	for _, c := range candidates {
		fmt.Println(" -", c.Label)
	}
}

func (a *app) checkout(ctx context.Context) {
	if !a.sess.IsLoggedIn() {
		fmt.Println("Please log in first")
		return
	}
	billing := a.profile.Get()
	if err := billing.Validate(); err != nil {
		fmt.Println("Set a profile first (profile <name>|<addr>|...):", err)
		return
	}

	if err := a.orch.PrepareIntent(ctx); err != nil {
		fmt.Println("Could not prepare payment:", err)
		return
	}
	if err := a.orch.Confirm(ctx, billing); err != nil {
		if errors.Is(err, checkout.ErrOrderNotPersisted) {
			fmt.Println("Payment went through but the order was not saved yet.")
			fmt.Println("Run 'finalize' to complete the order. Do NOT pay again.")
			return
		}
		fmt.Println("Checkout failed:", err)
		if _, err := a.orch.StartNewAttempt(); err == nil {
			fmt.Println("You can retry checkout.")
		}
		return
	}
	fmt.Println("Order placed:", a.orch.Attempt().OrderID)
}

func (a *app) finalize(ctx context.Context) {
	if err := a.orch.Finalize(ctx); err != nil {
		fmt.Println("Finalize failed, safe to retry:", err)
		return
	}
	fmt.Println("Order placed:", a.orch.Attempt().OrderID)
}

func (a *app) listOrders(ctx context.Context) {
	orders, err := a.orders.ListMine(ctx)
	if err != nil {
		fmt.Println("Could not load orders:", err)
		return
	}
	if len(orders) == 0 {
		fmt.Println("No orders yet")
		return
	}
	for _, o := range orders {
		fmt.Printf("%s  #%d  %s  %s %s\n", o.PublicID, o.ID, o.Status, o.TotalAmount, o.Currency)
	}
}

func (a *app) cancelOrder(ctx context.Context, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		fmt.Println("Invalid order id")
		return
	}
	order, err := a.orders.Cancel(ctx, id)
	if err != nil {
		fmt.Println("Cancel failed:", err)
		return
	}
	fmt.Printf("Order %s is now %s\n", order.PublicID, order.Status)
}
