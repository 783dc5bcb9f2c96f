package channels

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/winmachacker-tech/atlas-command-sub005/internal/auth"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/memory"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/models"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/orchestrator"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/tools"
	"gorm.io/gorm"
)

// onboardingReply is sent to senders whose channel identity is not linked
// to any tenant yet.
const onboardingReply = "I don't recognize this number yet. Ask your dispatcher to link it to your account, then message me again."

// Router runs the per-message pipeline for one channel adapter: self
// filter, link resolution, fast-path intercepts, then the dispatch loop,
// with both directions written to the message audit log.
type Router struct {
	db         *gorm.DB
	resolver   *auth.Resolver
	loop       *orchestrator.Loop
	intercepts *Intercepts
	adapter    Adapter
	store      *memory.Store
	ranker     tools.Ranker
	botUserID  string
	now        func() time.Time
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	DB         *gorm.DB
	Resolver   *auth.Resolver
	Loop       *orchestrator.Loop
	Intercepts *Intercepts
	Adapter    Adapter
	Ranker     tools.Ranker // optional, forwarded to the intercept executor
	BotUserID  string       // bot's own platform user id for self filtering
	Now        func() time.Time
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("channels: router: db is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("channels: router: resolver is required")
	}
	if opts.Loop == nil {
		return nil, fmt.Errorf("channels: router: loop is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("channels: router: adapter is required")
	}
	store, err := memory.NewStore(opts.DB)
	if err != nil {
		return nil, err
	}
	intercepts := opts.Intercepts
	if intercepts == nil {
		intercepts = NewIntercepts(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		db:         opts.DB,
		resolver:   opts.Resolver,
		loop:       opts.Loop,
		intercepts: intercepts,
		adapter:    opts.Adapter,
		store:      store,
		ranker:     opts.Ranker,
		botUserID:  opts.BotUserID,
		now:        now,
	}, nil
}

// Handle processes one inbound message end to end and sends the reply.
func (r *Router) Handle(ctx context.Context, msg Inbound) {
	if r.botUserID != "" && msg.UserID == r.botUserID {
		return
	}
	if msg.Text == "" {
		return
	}

	identity, err := r.resolver.ResolveChannel(msg.Channel, msg.ExternalID)
	if errors.Is(err, auth.ErrUnlinked) {
		r.reply(ctx, msg, onboardingReply)
		return
	}
	if err != nil {
		log.Printf("channels: router: resolve %s: %v", msg.Identity(), err)
		r.reply(ctx, msg, orchestrator.ErrorReply)
		return
	}

	start := r.now()
	channelIdentity := msg.Identity()
	reply, intercepted := r.tryIntercept(ctx, identity, channelIdentity, msg.Text)
	if !intercepted {
		reply, err = r.loop.Handle(ctx, orchestrator.Inbound{
			Identity:        identity,
			ChannelIdentity: channelIdentity,
			UserText:        msg.Text,
		})
		if err != nil {
			log.Printf("channels: router: loop %s: %v", channelIdentity, err)
		}
	}

	latency := int(r.now().Sub(start).Milliseconds())
	r.audit(identity.TenantID, msg, channelIdentity, reply, intercepted, latency)
	r.reply(ctx, msg, reply)
}

// tryIntercept runs the fast paths under the sender's identity. On a hit
// the mutated memory is persisted here since the loop never runs.
func (r *Router) tryIntercept(ctx context.Context, identity auth.Identity, channelIdentity, text string) (string, bool) {
	exec, err := tools.NewExecutor(tools.ExecutorOpts{
		DB:       r.db,
		Identity: identity,
		Ranker:   r.ranker,
		Now:      r.now,
	})
	if err != nil {
		log.Printf("channels: router: intercept executor: %v", err)
		return "", false
	}

	mem, err := r.store.Load(identity.TenantID, channelIdentity)
	if err != nil {
		log.Printf("channels: router: load memory %s: %v", channelIdentity, err)
		mem = memory.ContextMemory{}
	}

	reply, handled := r.intercepts.Try(ctx, exec, &mem, identity.DriverID, text)
	if !handled {
		return "", false
	}
	if err := r.store.Save(identity.TenantID, channelIdentity, mem); err != nil {
		log.Printf("channels: router: save memory %s: %v", channelIdentity, err)
	}
	return reply, true
}

// audit writes both directions of the exchange to the message log.
func (r *Router) audit(tenantID string, msg Inbound, channelIdentity, reply string, intercepted bool, latencyMs int) {
	rows := []models.MessageLog{
		{
			TenantID:        tenantID,
			Channel:         msg.Channel,
			ChannelIdentity: channelIdentity,
			Direction:       models.DirectionIn,
			Content:         msg.Text,
			Intercepted:     intercepted,
		},
		{
			TenantID:        tenantID,
			Channel:         msg.Channel,
			ChannelIdentity: channelIdentity,
			Direction:       models.DirectionOut,
			Content:         reply,
			Intercepted:     intercepted,
			LatencyMs:       latencyMs,
		},
	}
	if err := r.db.Create(&rows).Error; err != nil {
		log.Printf("channels: router: audit %s: %v", channelIdentity, err)
	}
}

func (r *Router) reply(ctx context.Context, msg Inbound, text string) {
	if text == "" {
		return
	}
	err := r.adapter.Send(ctx, Outbound{ReplyTo: msg.ReplyTo, Text: text})
	if err != nil {
		log.Printf("channels: router: send via %s: %v", r.adapter.Channel(), err)
	}
}
