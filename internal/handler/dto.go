package handler

import (
	"time"

	"cardpay/internal/model"
	"cardpay/internal/service"
)

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	IsAdmin   bool      `json:"is_admin"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Phone:     u.Phone,
		IsAdmin:   u.IsAdmin,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// CardResponse never carries more than the last four digits.
type CardResponse struct {
	ID             string    `json:"id"`
	CardHolderName string    `json:"card_holder_name"`
	MaskedNumber   string    `json:"masked_number"`
	LastFourDigits string    `json:"last_four_digits"`
	CardType       string    `json:"card_type"`
	ExpiryMonth    int       `json:"expiry_month"`
	ExpiryYear     int       `json:"expiry_year"`
	IsDefault      bool      `json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
	UserEmail      string    `json:"user_email,omitempty"`
}

func newCardResponse(card *model.Card) CardResponse {
	resp := CardResponse{
		ID:             card.ID.String(),
		CardHolderName: card.CardHolderName,
		MaskedNumber:   card.MaskedNumber,
		LastFourDigits: card.LastFourDigits,
		CardType:       string(card.CardType),
		ExpiryMonth:    card.ExpiryMonth,
		ExpiryYear:     card.ExpiryYear,
		IsDefault:      card.IsDefault,
		CreatedAt:      card.CreatedAt,
	}
	if card.User != nil {
		resp.UserEmail = card.User.Email
	}
	return resp
}

func newCardResponses(cards []model.Card) []CardResponse {
	out := make([]CardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, newCardResponse(&cards[i]))
	}
	return out
}

// TransactionResponse renders amounts as fixed two-decimal strings.
type TransactionResponse struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	Card          *string       `json:"card"`
	CardDetail    *CardResponse `json:"card_detail"`
	Amount        string        `json:"amount"`
	Currency      string        `json:"currency"`
	MerchantName  string        `json:"merchant_name"`
	Description   string        `json:"description"`
	Status        string        `json:"status"`
	ReferenceID   string        `json:"reference_id"`
	FailureReason string        `json:"failure_reason"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func newTransactionResponse(txn *model.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:            txn.ID.String(),
		UserID:        txn.UserID.String(),
		Amount:        txn.Amount.StringFixed(2),
		Currency:      txn.Currency,
		MerchantName:  txn.MerchantName,
		Description:   txn.Description,
		Status:        string(txn.Status),
		ReferenceID:   txn.ReferenceID,
		FailureReason: txn.FailureReason,
		CreatedAt:     txn.CreatedAt,
		UpdatedAt:     txn.UpdatedAt,
	}
	if txn.CardID != nil {
		id := txn.CardID.String()
		resp.Card = &id
	}
	if txn.Card != nil {
		card := newCardResponse(txn.Card)
		resp.CardDetail = &card
	}
	return resp
}

// TransactionPageResponse is one page of a transaction listing.
type TransactionPageResponse struct {
	Count    int64                 `json:"count"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Results  []TransactionResponse `json:"results"`
}

func newTransactionPageResponse(page *service.TransactionPage) TransactionPageResponse {
	results := make([]TransactionResponse, 0, len(page.Items))
	for i := range page.Items {
		results = append(results, newTransactionResponse(&page.Items[i]))
	}
	return TransactionPageResponse{
		Count:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Results:  results,
	}
}

// DailySummaryResponse is one (date, status) bucket.
type DailySummaryResponse struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
	Total  string `json:"total"`
}
