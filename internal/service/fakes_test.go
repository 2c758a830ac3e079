package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/foodbridge/internal/apperror"
	"github.com/sakif/foodbridge/internal/model"
	"github.com/sakif/foodbridge/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces.
// They follow the same contracts as repository/sqlite (conditional claim,
// NotFound on missing rows, Conflict on duplicates) without a database, so
// service tests exercise only business rules. Setting one of the *Err
// fields simulates a storage failure.

var (
	_ repository.UserRepository   = (*fakeUserRepo)(nil)
	_ repository.FoodRepository   = (*fakeFoodRepo)(nil)
	_ repository.RatingRepository = (*fakeRatingRepo)(nil)
	_ repository.ChatRepository   = (*fakeChatRepo)(nil)
)

// testNow is the fixed clock all service tests run against.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	createErr error
	getErr    error
	listErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

// add stores a ready-made user and returns it. Used to seed tests.
func (f *fakeUserRepo) add(name string, role model.Role) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u := &model.User{
		ID:        fmt.Sprintf("user-%d", f.nextID),
		Name:      name,
		Email:     strings.ToLower(name) + "@example.com",
		Address:   name + " street",
		Role:      role,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	f.users[u.ID] = u
	copied := *u
	return &copied
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.ConflictMsg("user with this email already exists")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) ListUsersByRole(_ context.Context, role model.Role) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.User{}
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// applyRating mirrors the store's running-mean update.
func (f *fakeUserRepo) applyRating(id string, score int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.Rating = (u.Rating*float64(u.RatingCount) + float64(score)) / float64(u.RatingCount+1)
	u.RatingCount++
	return nil
}

type fakeFoodRepo struct {
	mu     sync.Mutex
	foods  map[string]*model.Food
	users  *fakeUserRepo
	nextID int

	createErr error
	listErr   error
	expireErr error

	// lastFilter records the filter passed to ListFood.
	lastFilter repository.FoodFilter
}

func newFakeFoodRepo(users *fakeUserRepo) *fakeFoodRepo {
	return &fakeFoodRepo{foods: make(map[string]*model.Food), users: users}
}

// add seeds a listing with the given status and creation time.
func (f *fakeFoodRepo) add(donorID, title string, status model.Status, createdAt time.Time) *model.Food {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	food := &model.Food{
		ID:                 fmt.Sprintf("food-%d", f.nextID),
		Title:              title,
		Description:        title + " description",
		Photo:              "https://img.example.com/" + title + ".jpg",
		DonorID:            donorID,
		Status:             status,
		GuidelinesAccepted: true,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	f.foods[food.ID] = food
	copied := *food
	return &copied
}

// setReceiver forces a listing into a state with a receiver. Test seeding only.
func (f *fakeFoodRepo) setReceiver(id, receiverID string, status model.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.foods[id].ReceiverID = receiverID
	f.foods[id].Status = status
}

func (f *fakeFoodRepo) CreateFood(_ context.Context, food *model.Food) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	food.ID = fmt.Sprintf("food-%d", f.nextID)
	stored := *food
	f.foods[food.ID] = &stored
	return nil
}

func (f *fakeFoodRepo) GetFood(_ context.Context, id string) (*model.Food, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	food, ok := f.foods[id]
	if !ok {
		return nil, apperror.NotFound("food", id)
	}
	copied := *food
	return &copied, nil
}

func (f *fakeFoodRepo) GetFoodView(ctx context.Context, id string) (*model.FoodView, error) {
	food, err := f.GetFood(ctx, id)
	if err != nil {
		return nil, err
	}
	return f.view(ctx, food), nil
}

func (f *fakeFoodRepo) view(ctx context.Context, food *model.Food) *model.FoodView {
	v := &model.FoodView{Food: *food}
	if donor, err := f.users.GetUserByID(ctx, food.DonorID); err == nil {
		v.Donor = &model.DonorSummary{
			ID:          donor.ID,
			Name:        donor.Name,
			Address:     donor.Address,
			Rating:      donor.Rating,
			RatingCount: donor.RatingCount,
		}
	}
	if food.ReceiverID != "" {
		if recv, err := f.users.GetUserByID(ctx, food.ReceiverID); err == nil {
			v.ClaimedBy = &model.ClaimedBy{ID: recv.ID, Name: recv.Name, Email: recv.Email}
		}
	}
	return v
}

func (f *fakeFoodRepo) ListFood(ctx context.Context, filter repository.FoodFilter) ([]model.FoodView, error) {
	f.mu.Lock()
	f.lastFilter = filter
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	var matched []model.Food
	for _, food := range f.foods {
		if filter.Status != "" && food.EffectiveStatus(filter.Now) != filter.Status {
			continue
		}
		if filter.DonorID != "" && food.DonorID != filter.DonorID {
			continue
		}
		if filter.ReceiverID != "" && food.ReceiverID != filter.ReceiverID {
			continue
		}
		matched = append(matched, *food)
	}
	f.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	out := make([]model.FoodView, 0, len(matched))
	for i := range matched {
		out = append(out, *f.view(ctx, &matched[i]))
	}
	return out, nil
}

func (f *fakeFoodRepo) ClaimFood(_ context.Context, id, receiverID string, details model.NGODetails, notBefore, now time.Time) (*model.Food, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	food, ok := f.foods[id]
	if !ok {
		return nil, apperror.NotFound("food", id)
	}
	if food.Status != model.StatusAvailable || !food.CreatedAt.After(notBefore) {
		return nil, apperror.ConflictMsg(msgNoLongerAvailable)
	}
	food.Status = model.StatusClaimed
	food.ReceiverID = receiverID
	d := details
	food.NGODetails = &d
	food.UpdatedAt = now
	copied := *food
	return &copied, nil
}

func (f *fakeFoodRepo) CompleteFood(_ context.Context, id string, now time.Time) (*model.Food, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	food, ok := f.foods[id]
	if !ok {
		return nil, apperror.NotFound("food", id)
	}
	if food.Status != model.StatusClaimed {
		return nil, apperror.ValidationFailed("status", msgOnlyClaimed)
	}
	food.Status = model.StatusCompleted
	food.UpdatedAt = now
	copied := *food
	return &copied, nil
}

func (f *fakeFoodRepo) ExpireStale(_ context.Context, cutoff, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expireErr != nil {
		return 0, f.expireErr
	}
	var n int64
	for _, food := range f.foods {
		if food.Status == model.StatusAvailable && !food.CreatedAt.After(cutoff) {
			food.Status = model.StatusExpired
			food.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (f *fakeFoodRepo) status(id string) model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if food, ok := f.foods[id]; ok {
		return food.Status
	}
	return ""
}

type fakeRatingRepo struct {
	mu      sync.Mutex
	ratings []model.Rating
	users   *fakeUserRepo
	nextID  int

	createErr error
}

func newFakeRatingRepo(users *fakeUserRepo) *fakeRatingRepo {
	return &fakeRatingRepo{users: users}
}

func (f *fakeRatingRepo) CreateRating(_ context.Context, rating *model.Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, r := range f.ratings {
		if r.FoodID == rating.FoodID && r.RaterID == rating.RaterID {
			return apperror.ConflictMsg(msgAlreadyRated)
		}
	}
	if err := f.users.applyRating(rating.RatedID, rating.Rating); err != nil {
		return err
	}
	f.nextID++
	rating.ID = fmt.Sprintf("rating-%d", f.nextID)
	f.ratings = append(f.ratings, *rating)
	return nil
}

func (f *fakeRatingRepo) HasRated(_ context.Context, foodID, raterID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.ratings {
		if r.FoodID == foodID && r.RaterID == raterID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRatingRepo) ListRatingsFor(ctx context.Context, ratedID string) ([]model.RatingView, error) {
	f.mu.Lock()
	var matched []model.Rating
	for i := len(f.ratings) - 1; i >= 0; i-- {
		if f.ratings[i].RatedID == ratedID {
			matched = append(matched, f.ratings[i])
		}
	}
	f.mu.Unlock()

	out := make([]model.RatingView, 0, len(matched))
	for _, r := range matched {
		v := model.RatingView{Rating: r, Rater: model.UserRef{ID: r.RaterID}}
		if u, err := f.users.GetUserByID(ctx, r.RaterID); err == nil {
			v.Rater.Name = u.Name
		}
		out = append(out, v)
	}
	return out, nil
}

type fakeChatRepo struct {
	mu       sync.Mutex
	messages []model.ChatMessage
	users    *fakeUserRepo
	nextID   int

	createErr error
}

func newFakeChatRepo(users *fakeUserRepo) *fakeChatRepo {
	return &fakeChatRepo{users: users}
}

func (f *fakeChatRepo) CreateMessage(_ context.Context, msg *model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	msg.ID = fmt.Sprintf("msg-%03d", f.nextID)
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeChatRepo) GetMessageView(ctx context.Context, id string) (*model.ChatView, error) {
	f.mu.Lock()
	var found *model.ChatMessage
	for i := range f.messages {
		if f.messages[i].ID == id {
			m := f.messages[i]
			found = &m
		}
	}
	f.mu.Unlock()
	if found == nil {
		return nil, apperror.NotFound("message", id)
	}
	v := f.view(ctx, *found)
	return &v, nil
}

func (f *fakeChatRepo) view(ctx context.Context, m model.ChatMessage) model.ChatView {
	v := model.ChatView{ChatMessage: m}
	if u, err := f.users.GetUserByID(ctx, m.SenderID); err == nil {
		v.Sender = model.UserRef{ID: u.ID, Name: u.Name, Role: u.Role}
	}
	if u, err := f.users.GetUserByID(ctx, m.RecipientID); err == nil {
		v.Recipient = model.UserRef{ID: u.ID, Name: u.Name, Role: u.Role}
	}
	return v
}

func (f *fakeChatRepo) collect(ctx context.Context, keep func(model.ChatMessage) bool, newestFirst bool) []model.ChatView {
	f.mu.Lock()
	var matched []model.ChatMessage
	for _, m := range f.messages {
		if keep(m) {
			matched = append(matched, m)
		}
	}
	f.mu.Unlock()
	if newestFirst {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	out := make([]model.ChatView, 0, len(matched))
	for _, m := range matched {
		out = append(out, f.view(ctx, m))
	}
	return out
}

func (f *fakeChatRepo) Inbox(ctx context.Context, userID string) ([]model.ChatView, error) {
	return f.collect(ctx, func(m model.ChatMessage) bool {
		return m.SenderID == userID || m.RecipientID == userID
	}, true), nil
}

func (f *fakeChatRepo) Thread(ctx context.Context, userID, otherID string) ([]model.ChatView, error) {
	return f.collect(ctx, func(m model.ChatMessage) bool {
		return (m.SenderID == userID && m.RecipientID == otherID) ||
			(m.SenderID == otherID && m.RecipientID == userID)
	}, false), nil
}

func (f *fakeChatRepo) MarkRead(_ context.Context, recipientID, senderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for i := range f.messages {
		m := &f.messages[i]
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures claim notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string // "donorEmail:foodID"
	err   error
}

func (n *recordingNotifier) NotifyClaim(_ context.Context, donor *model.User, food *model.Food) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, donor.Email+":"+food.ID)
	return n.err
}

// =========================================================================
// FIXTURE
// =========================================================================

type fixture struct {
	users    *fakeUserRepo
	foods    *fakeFoodRepo
	ratings  *fakeRatingRepo
	chats    *fakeChatRepo
	notifier *recordingNotifier

	food   *FoodService
	rating *RatingService
	chat   *ChatService
	user   *UserService
}

func newFixture() *fixture {
	users := newFakeUserRepo()
	fx := &fixture{
		users:    users,
		foods:    newFakeFoodRepo(users),
		ratings:  newFakeRatingRepo(users),
		chats:    newFakeChatRepo(users),
		notifier: &recordingNotifier{},
	}
	logger := discardLogger()

	fx.food = NewFoodService(fx.foods, users, fx.notifier, logger)
	fx.food.now = fixedClock(testNow)
	fx.rating = NewRatingService(fx.ratings, fx.foods, users, logger)
	fx.rating.now = fixedClock(testNow)
	fx.chat = NewChatService(fx.chats, users, fx.foods, logger)
	fx.chat.now = fixedClock(testNow)
	fx.user = NewUserService(users, logger)
	return fx
}
