package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gavelworks/auctionhouse/internal/services/auction/domain"
	"github.com/gavelworks/auctionhouse/internal/services/auction/storage"
	"github.com/gavelworks/auctionhouse/internal/services/auction/storage/filter"
)

var (
	storeStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	storeEnd   = storeStart.Add(24 * time.Hour)
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "auction.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testAuction(id string) domain.Auction {
	return domain.Auction{
		ID:           id,
		Owner:        "alice",
		Title:        "vintage clock",
		Description:  "brass, working",
		AssetRef:     "ipfs://clock",
		Category:     "Collectibles",
		StartTime:    storeStart,
		EndTime:      storeEnd,
		MinIncrement: 1,
		CreatedAt:    storeStart.Add(-time.Hour),
		UpdatedAt:    storeStart.Add(-time.Hour),
	}
}

func mustCreate(t *testing.T, store *Store, auction domain.Auction) {
	t.Helper()
	if err := store.CreateAuction(context.Background(), auction); err != nil {
		t.Fatalf("create auction %s: %v", auction.ID, err)
	}
}

func TestCreateAndGetAuction(t *testing.T) {
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))

	got, err := store.GetAuction(context.Background(), "auc_1")
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if got.Owner != "alice" || got.Title != "vintage clock" || got.Category != "Collectibles" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.StartTime.Equal(storeStart) || !got.EndTime.Equal(storeEnd) {
		t.Fatalf("unexpected window %v - %v", got.StartTime, got.EndTime)
	}
	if got.HighestBid != 0 || got.HighestBidder != "" || got.HighestPayableBid != 0 {
		t.Fatalf("expected pristine bid state, got %+v", got)
	}
	if got.Ended || got.Cancelled {
		t.Fatalf("expected non-terminal flags, got %+v", got)
	}
	if got.Seq <= 0 {
		t.Fatalf("expected assigned sequence, got %d", got.Seq)
	}
}

func TestCreateAuctionDuplicate(t *testing.T) {
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))

	err := store.CreateAuction(context.Background(), testAuction("auc_1"))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
}

func TestGetAuctionNotFound(t *testing.T) {
	store := openStore(t)
	_, err := store.GetAuction(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAuctionsOrderAndBounds(t *testing.T) {
	store := openStore(t)
	for _, id := range []string{"auc_1", "auc_2", "auc_3"} {
		mustCreate(t, store, testAuction(id))
	}

	page, err := store.ListAuctions(context.Background(), storage.ListQuery{Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list auctions: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 auctions, got %d", len(page))
	}
	if page[0].ID != "auc_2" || page[1].ID != "auc_3" {
		t.Fatalf("expected creation order page, got %s/%s", page[0].ID, page[1].ID)
	}
}

func TestListAuctionsWithFilter(t *testing.T) {
	store := openStore(t)
	art := testAuction("auc_art")
	art.Category = "Art"
	mustCreate(t, store, art)
	mustCreate(t, store, testAuction("auc_other"))

	cond, err := filter.ParseAuctionFilter(`category = "Art"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	page, err := store.ListAuctions(context.Background(), storage.ListQuery{Limit: 10, Filter: cond})
	if err != nil {
		t.Fatalf("list auctions: %v", err)
	}
	if len(page) != 1 || page[0].ID != "auc_art" {
		t.Fatalf("expected only the Art auction, got %+v", page)
	}
}

func bidCommit(auctionID, bidID, bidder string, prev, amount, payable int64, refund domain.Refund) storage.BidCommit {
	now := storeStart.Add(time.Hour)
	return storage.BidCommit{
		PrevHighestBid: prev,
		Outcome: domain.BidOutcome{
			HighestBid:        amount,
			HighestBidder:     bidder,
			HighestPayableBid: payable,
			Refund:            refund,
		},
		Bid: domain.Bid{
			ID:        bidID,
			AuctionID: auctionID,
			Bidder:    bidder,
			Amount:    amount,
			Payable:   payable,
			CreatedAt: now,
		},
		UpdatedAt: now,
	}
}

func TestCommitBidUpdatesLeaderAndRefund(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))

	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_1", "x", 0, 10, 1, domain.Refund{})); err != nil {
		t.Fatalf("commit first bid: %v", err)
	}
	refund := domain.Refund{Identity: "x", Amount: 10}
	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_2", "y", 10, 15, 11, refund)); err != nil {
		t.Fatalf("commit second bid: %v", err)
	}

	auction, err := store.GetAuction(ctx, "auc_1")
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if auction.HighestBid != 15 || auction.HighestBidder != "y" || auction.HighestPayableBid != 11 {
		t.Fatalf("unexpected leader state %+v", auction)
	}

	balance, err := store.PendingReturn(ctx, "x")
	if err != nil {
		t.Fatalf("pending return: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected refund balance 10, got %d", balance)
	}

	bids, err := store.ListBids(ctx, "auc_1")
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != 2 || bids[0].Bidder != "x" || bids[1].Bidder != "y" {
		t.Fatalf("unexpected bid history %+v", bids)
	}
}

func TestCommitBidStaleGuard(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))

	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_1", "x", 0, 10, 1, domain.Refund{})); err != nil {
		t.Fatalf("commit first bid: %v", err)
	}
	// Same guard value again: the stored leader already moved to 10.
	err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_2", "y", 0, 15, 11, domain.Refund{}))
	if !errors.Is(err, storage.ErrStaleRecord) {
		t.Fatalf("expected stale record, got %v", err)
	}

	bids, err := store.ListBids(ctx, "auc_1")
	if err != nil {
		t.Fatalf("list bids: %v", err)
	}
	if len(bids) != 1 {
		t.Fatalf("expected rejected commit to leave no bid row, got %d", len(bids))
	}
}

func TestCommitBidMissingAuction(t *testing.T) {
	store := openStore(t)
	err := store.CommitBid(context.Background(), "missing", bidCommit("missing", "bid_1", "x", 0, 10, 1, domain.Refund{}))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCommitEndRecordsSettlement(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))
	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_1", "y", 0, 15, 11, domain.Refund{})); err != nil {
		t.Fatalf("commit bid: %v", err)
	}

	commit := storage.EndCommit{
		Payout: storage.Payout{
			ID:        "pay_1",
			Kind:      storage.PayoutOwnerSettlement,
			Recipient: "alice",
			AuctionID: "auc_1",
			Amount:    11,
			CreatedAt: storeEnd,
		},
		Refund:    domain.Refund{Identity: "y", Amount: 4},
		UpdatedAt: storeEnd,
	}
	if err := store.CommitEnd(ctx, "auc_1", commit); err != nil {
		t.Fatalf("commit end: %v", err)
	}

	auction, err := store.GetAuction(ctx, "auc_1")
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if !auction.Ended || auction.Cancelled {
		t.Fatalf("expected ended flag, got %+v", auction)
	}

	balance, err := store.PendingReturn(ctx, "y")
	if err != nil {
		t.Fatalf("pending return: %v", err)
	}
	if balance != 4 {
		t.Fatalf("expected overpayment refund 4, got %d", balance)
	}

	// A second end commit must find the guard closed.
	if err := store.CommitEnd(ctx, "auc_1", commit); !errors.Is(err, storage.ErrStaleRecord) {
		t.Fatalf("expected stale record on re-end, got %v", err)
	}
}

func TestCommitCancelReleasesEscrow(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))
	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_1", "x", 0, 10, 1, domain.Refund{})); err != nil {
		t.Fatalf("commit bid: %v", err)
	}

	commit := storage.CancelCommit{
		Refund:    domain.Refund{Identity: "x", Amount: 10},
		UpdatedAt: storeStart.Add(2 * time.Hour),
	}
	if err := store.CommitCancel(ctx, "auc_1", commit); err != nil {
		t.Fatalf("commit cancel: %v", err)
	}

	auction, err := store.GetAuction(ctx, "auc_1")
	if err != nil {
		t.Fatalf("get auction: %v", err)
	}
	if !auction.Cancelled || auction.Ended {
		t.Fatalf("expected cancelled flag, got %+v", auction)
	}

	balance, err := store.PendingReturn(ctx, "x")
	if err != nil {
		t.Fatalf("pending return: %v", err)
	}
	if balance != 10 {
		t.Fatalf("expected full refund 10, got %d", balance)
	}
}

func TestWithdrawPendingReturn(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))
	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_1", "x", 0, 10, 1, domain.Refund{})); err != nil {
		t.Fatalf("commit bid: %v", err)
	}
	refund := domain.Refund{Identity: "x", Amount: 10}
	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_2", "y", 10, 15, 11, refund)); err != nil {
		t.Fatalf("commit second bid: %v", err)
	}

	payout := storage.Payout{ID: "pay_w1", Kind: storage.PayoutWithdrawal, Recipient: "x", CreatedAt: storeEnd}
	amount, err := store.WithdrawPendingReturn(ctx, payout)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount != 10 {
		t.Fatalf("expected withdrawal of 10, got %d", amount)
	}

	balance, err := store.PendingReturn(ctx, "x")
	if err != nil {
		t.Fatalf("pending return: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected zeroed balance, got %d", balance)
	}

	payout.ID = "pay_w2"
	amount, err = store.WithdrawPendingReturn(ctx, payout)
	if err != nil {
		t.Fatalf("second withdraw: %v", err)
	}
	if amount != 0 {
		t.Fatalf("expected nothing left to withdraw, got %d", amount)
	}
}

func TestTotalsConservation(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	mustCreate(t, store, testAuction("auc_1"))

	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_1", "x", 0, 10, 1, domain.Refund{})); err != nil {
		t.Fatalf("commit bid: %v", err)
	}
	refund := domain.Refund{Identity: "x", Amount: 10}
	if err := store.CommitBid(ctx, "auc_1", bidCommit("auc_1", "bid_2", "y", 10, 15, 11, refund)); err != nil {
		t.Fatalf("commit second bid: %v", err)
	}
	endCommit := storage.EndCommit{
		Payout: storage.Payout{
			ID:        "pay_1",
			Kind:      storage.PayoutOwnerSettlement,
			Recipient: "alice",
			AuctionID: "auc_1",
			Amount:    11,
			CreatedAt: storeEnd,
		},
		Refund:    domain.Refund{Identity: "y", Amount: 4},
		UpdatedAt: storeEnd,
	}
	if err := store.CommitEnd(ctx, "auc_1", endCommit); err != nil {
		t.Fatalf("commit end: %v", err)
	}
	if _, err := store.WithdrawPendingReturn(ctx, storage.Payout{
		ID: "pay_w1", Kind: storage.PayoutWithdrawal, Recipient: "x", CreatedAt: storeEnd,
	}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	totals, err := store.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Deposited != 25 {
		t.Fatalf("expected deposits of 25, got %d", totals.Deposited)
	}
	if got := totals.Escrowed + totals.PendingReturns + totals.PaidOut; got != totals.Deposited {
		t.Fatalf("conservation violated: %d escrowed + %d pending + %d paid != %d deposited",
			totals.Escrowed, totals.PendingReturns, totals.PaidOut, totals.Deposited)
	}
	// Ended auction holds no escrow; y is owed 4; owner got 11 and x withdrew 10.
	if totals.Escrowed != 0 || totals.PendingReturns != 4 || totals.PaidOut != 21 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}
