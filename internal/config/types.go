package config

// Config is the full runtime configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Trading  TradingConfig  `yaml:"trading"`
	Strategy StrategyConfig `yaml:"strategy"`
	Risk     RiskConfig     `yaml:"risk"`
	Engine   EngineConfig   `yaml:"engine"`
	Notify   NotifyConfig   `yaml:"notify"`
	Store    StoreConfig    `yaml:"store"`
}

type AppConfig struct {
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`
	HTTPAddr string `yaml:"http_addr"`
}

type ExchangeConfig struct {
	RESTBaseURL        string `yaml:"rest_base_url"`
	APIKey             string `yaml:"api_key"`
	APISecret          string `yaml:"api_secret"`
	StakeCurrency      string `yaml:"stake_currency"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
	// Paper switches execution to simulated fills at the last close while
	// still fetching real market data. Balance then comes from
	// paper_balance instead of the venue.
	Paper        bool    `yaml:"paper"`
	PaperBalance float64 `yaml:"paper_balance"`
}

type TradingConfig struct {
	Symbol      string `yaml:"symbol"`
	Interval    string `yaml:"interval"`
	CandleLimit int    `yaml:"candle_limit"`
}

type StrategyConfig struct {
	RSI  RSIConfig  `yaml:"rsi"`
	MACD MACDConfig `yaml:"macd"`
	// Weights maps strategy name ("rsi", "macd") to its ensemble weight in
	// [0,1]. Read-only during a run.
	Weights map[string]float64 `yaml:"weights"`
	// Floors maps strategy name to a per-strategy confidence floor; signals
	// under the floor do not participate in the vote.
	Floors        map[string]float64 `yaml:"floors"`
	MinConfidence float64            `yaml:"min_confidence"`
}

type RSIConfig struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
}

type MACDConfig struct {
	Fast   int `yaml:"fast"`
	Slow   int `yaml:"slow"`
	Signal int `yaml:"signal"`
	// NormDivisor is the fallback scale mapping the crossover gap into
	// [0,1] confidence when ATR is unavailable. A tunable, not a law.
	NormDivisor float64 `yaml:"norm_divisor"`
}

type RiskConfig struct {
	RiskPct         float64 `yaml:"risk_pct"`
	MaxPositionPct  float64 `yaml:"max_position_pct"`
	StopLossPct     float64 `yaml:"stop_loss_pct"`
	TakeProfitPct   float64 `yaml:"take_profit_pct"`
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct"`
	FeeRate         float64 `yaml:"fee_rate"`
	QtyStep         float64 `yaml:"qty_step"`
	MinQty          float64 `yaml:"min_qty"`
}

type EngineConfig struct {
	MaxConsecutiveFailures int  `yaml:"max_consecutive_failures"`
	RunImmediately         bool `yaml:"run_immediately"`
	TickOffsetSeconds      int  `yaml:"tick_offset_seconds"`
	EventBuffer            int  `yaml:"event_buffer"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type StoreConfig struct {
	// Path of the sqlite database holding snapshots and trade history.
	// Empty disables durability.
	Path string `yaml:"path"`
}
