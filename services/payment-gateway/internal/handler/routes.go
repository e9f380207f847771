// services/payment-gateway/internal/handler/routes.go
package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the v1 API on router.
func RegisterRoutes(router gin.IRouter, payments *PaymentHandler, listings *ListingHandler) {
	v1 := router.Group("/api/v1")
	{
		p := v1.Group("/payments")
		{
			p.POST("", payments.CreatePayment)
			p.GET("", payments.ListPayments)
			p.GET("/:id", payments.GetPayment)
		}

		l := v1.Group("/listings")
		{
			l.POST("", listings.CreateListing)
			l.GET("/:id", listings.GetListing)
			l.GET("/:id/price", listings.GetListingPrice)
			l.PATCH("/:id", listings.UpdateListing)
			l.POST("/:id/payments", payments.CreateListingPayment)
		}
	}
}
