package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"strings"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
}

// Service sends order confirmation mail for placed orders.
type Service struct {
	Users  UserFinder
	Mailer Mailer
	Redis  *redis.Client // optional dedup
}

func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	if t := kafkax.HeaderValue(m, kafkax.HeaderEventType); t != "" && t != orders.EventOrderPlaced {
		return nil
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("notify: skip undecodable message at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "notify", env.EventID)
		done, err := redisx.IsDone(ctx, s.Redis, dkey)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := s.confirm(ctx, env); err != nil {
			return err
		}
		if err := redisx.MarkDone(context.WithoutCancel(ctx), s.Redis, dkey, redisx.TTLDedup); err != nil {
			log.Printf("notify: mark event %s done: %v", env.EventID, err)
		}
		return nil
	}
	return s.confirm(ctx, env)
}

func (s *Service) confirm(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}
	u, err := s.Users.FindByID(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("order %d: %w", p.OrderID, err)
	}
	msg, err := Confirmation(u, p)
	if err != nil {
		return err
	}
	return s.Mailer.Send(ctx, msg)
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<p>Hi {{.Name}},</p>
<p>Thanks for your order <strong>{{.P.Reference}}</strong>.</p>
<table>
{{range .P.Items}}<tr><td>{{.ProductName}} ({{.Size}}, {{.Color}})</td><td>{{.Qty}} x ${{.UnitPrice}}</td></tr>
{{end}}</table>
<p>Subtotal: ${{.P.Subtotal}}<br>Shipping: ${{.P.Shipping}}<br>Tax: ${{.P.Tax}}<br><strong>Total: ${{.P.Total}}</strong></p>
`))

// Confirmation renders the order confirmation for u.
func Confirmation(u *users.User, p orders.OrderPlacedPayload) (Message, error) {
	name := u.FullName()
	if name == "" {
		name = u.Email
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nThanks for your order %s.\n\n", name, p.Reference)
	for _, it := range p.Items {
		fmt.Fprintf(&text, "%s (%s, %s)  %d x $%s\n", it.ProductName, it.Size, it.Color, it.Qty, it.UnitPrice)
	}
	fmt.Fprintf(&text, "\nSubtotal: $%s\nShipping: $%s\nTax: $%s\nTotal: $%s\n", p.Subtotal, p.Shipping, p.Tax, p.Total)

	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, struct {
		Name string
		P    orders.OrderPlacedPayload
	}{name, p}); err != nil {
		return Message{}, err
	}

	return Message{
		ToName:  name,
		ToEmail: u.Email,
		Subject: "Order confirmation " + p.Reference,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
