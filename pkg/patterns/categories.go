package patterns

// Scam signature tables. Patterns match against lowercased, normalized text.
// Keep each category's list short and high-precision: the classifier weighs
// every individual match, so noisy patterns inflate confidence.

func (r *Registry) registerBankFraudPatterns() {
	r.register("bank_account_block", `bank account.*block`, CategoryBankFraud,
		"Threat that a bank account will be blocked")
	r.register("account_suspend", `account.*suspend`, CategoryBankFraud,
		"Threat of account suspension")
	r.register("verify_account", `verify.*account`, CategoryBankFraud,
		"Request to verify account details")
	r.register("kyc_update", `update.*kyc`, CategoryBankFraud,
		"Fake KYC update demand")
	r.register("unauthorized_txn", `unauthorized.*transaction`, CategoryBankFraud,
		"Claimed unauthorized transaction")
	r.register("account_deactivate", `account.*deactivat`, CategoryBankFraud,
		"Threat of account deactivation")
}

func (r *Registry) registerUPIFraudPatterns() {
	r.register("upi_id_request", `upi.*id`, CategoryUPIFraud,
		"Request for a UPI id")
	r.register("paytm_wallet", `paytm.*wallet`, CategoryUPIFraud,
		"Paytm wallet lure")
	r.register("google_pay", `google.*pay`, CategoryUPIFraud,
		"Google Pay lure")
	r.register("phonepe", `phonepe`, CategoryUPIFraud,
		"PhonePe lure")
	r.register("refund_pending", `refund.*pending`, CategoryUPIFraud,
		"Fake pending refund")
	r.register("payment_failed", `payment.*fail`, CategoryUPIFraud,
		"Fake failed payment")
}

func (r *Registry) registerPhishingPatterns() {
	r.register("click_link", `click.*link`, CategoryPhishing,
		"Pressure to click a link")
	r.register("verify_here", `verify.*here`, CategoryPhishing,
		"Inline verification lure")
	r.register("confirm_identity", `confirm.*identity`, CategoryPhishing,
		"Identity confirmation lure")
	r.register("reset_password", `reset.*password`, CategoryPhishing,
		"Password reset lure")
	// Any URL except government or bank domains. RE2 has no negative
	// lookahead, so the domain exception lives in Exclude.
	r.registerExcluding("raw_url", `https?://`, `https?://[^\s]*\.(gov|bank)\b`,
		CategoryPhishing, "Unsolicited URL outside .gov/.bank")
	r.register("bitly_shortener", `bit\.ly`, CategoryPhishing,
		"bit.ly link shortener")
	r.register("tinyurl_shortener", `tinyurl`, CategoryPhishing,
		"tinyurl link shortener")
}

func (r *Registry) registerUrgencyPatterns() {
	r.register("immediately", `immediately`, CategoryUrgency,
		"Demand for immediate action")
	r.register("urgent", `urgent`, CategoryUrgency,
		"Urgency framing")
	r.register("within_hours", `within.*hours`, CategoryUrgency,
		"Countdown deadline")
	r.register("expire_today", `expire.*today`, CategoryUrgency,
		"Same-day expiry threat")
	r.register("last_chance", `last.*chance`, CategoryUrgency,
		"Last-chance framing")
	r.register("act_now", `act now`, CategoryUrgency,
		"Act-now framing")
	r.register("limited_time", `limited.*time`, CategoryUrgency,
		"Limited-time framing")
}

func (r *Registry) registerFakeLotteryPatterns() {
	r.register("won_prize", `won.*prize`, CategoryFakeLottery,
		"Prize win claim")
	r.register("lottery_winner", `lottery.*winner`, CategoryFakeLottery,
		"Lottery winner claim")
	r.register("congrats_selected", `congratulations.*selected`, CategoryFakeLottery,
		"Selection congratulation")
	r.register("claim_reward", `claim.*reward`, CategoryFakeLottery,
		"Reward claim lure")
}

func (r *Registry) registerImpersonationPatterns() {
	r.register("tax_department", `tax.*department`, CategoryImpersonation,
		"Tax department impersonation")
	r.register("income_tax", `income.*tax`, CategoryImpersonation,
		"Income tax impersonation")
	r.register("police_station", `police.*station`, CategoryImpersonation,
		"Police impersonation")
	r.register("cyber_cell", `cyber.*cell`, CategoryImpersonation,
		"Cyber cell impersonation")
	r.register("rbi_official", `rbi.*official`, CategoryImpersonation,
		"RBI official impersonation")
	r.register("government_officer", `government.*officer`, CategoryImpersonation,
		"Government officer impersonation")
}

// registerSuspiciousKeywords loads the keyword presence list used for the
// classifier's keyword bonus and CLI diagnostics. The extractor carries its
// own, narrower list for reported intelligence.
func (r *Registry) registerSuspiciousKeywords() {
	r.keywords = []string{
		"urgent",
		"verify",
		"confirm",
		"suspend",
		"block",
		"expire",
		"immediately",
		"click here",
		"password",
		"otp",
		"cvv",
		"pin",
		"card number",
		"bank details",
		"refund",
	}
}
