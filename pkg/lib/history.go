package lib

import (
	"context"

	"github.com/slok/kage/internal/app/history"
	"github.com/slok/kage/internal/model"
)

// History returns the decided requests, newest first. Pass nil opts to get all of them.
func (c *Client) History(ctx context.Context, opts *HistoryOpts) ([]HistoryRecord, error) {
	req := history.Request{}
	if opts != nil {
		req.Limit = opts.Limit
		if opts.Status != nil {
			s := model.ExecutionStatus(*opts.Status)
			req.StatusFilter = &s
		}
	}

	records, err := c.history.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	res := make([]HistoryRecord, 0, len(records))
	for _, r := range records {
		res = append(res, fromInternalRecord(r))
	}
	return res, nil
}
