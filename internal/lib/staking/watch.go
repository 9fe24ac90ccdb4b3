package staking

import (
	"context"
	"errors"

	"github.com/invarch/daostake/internal/lib/misc"
)

// ErrSubscriptionEnded is returned by Watch when the node stops delivering updates.
var ErrSubscriptionEnded = errors.New("chain subscription ended")

// Watch feeds staker info and current era changes of account into its session until ctx is done
// or a subscription ends. onChange, if set, is called after every applied event.
func (o *ClaimOrchestrator) Watch(ctx context.Context, account string, daoIDs []uint32, onChange func(SessionSnapshot)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eras, err := o.source.SubscribeCurrentEra(ctx)
	if err != nil {
		return err
	}
	infos, err := o.source.SubscribeStakerInfo(ctx, account, daoIDs)
	if err != nil {
		return err
	}
	session := o.Session(account)
	applied := func(event Event) {
		session.Apply(event)
		if onChange != nil {
			onChange(session.Snapshot())
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case era, ok := <-eras:
			if !ok {
				return ErrSubscriptionEnded
			}
			misc.Debugf(o.log, "current era %d", era)
			applied(EraAdvanced{Era: era})
		case info, ok := <-infos:
			if !ok {
				return ErrSubscriptionEnded
			}
			update := StakerInfoUpdated{PositionID: info.PositionID}
			if pos, found := PositionFromStakes(info.PositionID, info.Stakes); found {
				update.Position = &pos
			}
			applied(update)
		}
	}
}
