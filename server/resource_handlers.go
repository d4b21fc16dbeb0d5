package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HandleListAccounts serves canned sandbox account data for the
// authenticated subject.
func (s *Server) HandleListAccounts(c *gin.Context) {
	owner := c.GetString(ctxSubject)
	c.JSON(http.StatusOK, gin.H{
		"accounts": []gin.H{
			{
				"account_id": "acc-001",
				"iban":       "SA0380000000608010167519",
				"currency":   "SAR",
				"nickname":   "Current Account",
				"owner":      owner,
			},
			{
				"account_id": "acc-002",
				"iban":       "SA4420000001234567891234",
				"currency":   "SAR",
				"nickname":   "Savings Account",
				"owner":      owner,
			},
		},
	})
}

type paymentBody struct {
	CreditorIBAN string `json:"creditor_iban"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Reference    string `json:"reference"`
}

// HandleInitiatePayment accepts a payment instruction and acknowledges it
// as queued for settlement. Nothing is actually moved in the sandbox.
func (s *Server) HandleInitiatePayment(c *gin.Context) {
	var body paymentBody
	_ = c.ShouldBindJSON(&body)

	c.JSON(http.StatusCreated, gin.H{
		"payment_id":    uuid.NewString(),
		"status":        "AcceptedSettlementInProcess",
		"debtor":        c.GetString(ctxSubject),
		"creditor_iban": body.CreditorIBAN,
		"amount":        body.Amount,
		"currency":      body.Currency,
		"reference":     body.Reference,
	})
}
