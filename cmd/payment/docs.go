package main

// @title Lesson Payments API
// @version 1.0
// @description Checkout, payment reconciliation, enrollments and referral commissions

// @host localhost:8083
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
