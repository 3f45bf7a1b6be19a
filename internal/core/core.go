/*
Core describes the market-making pipeline this module wires together.

# Module
  - feed: produces schema.Quote ticks, either synthetically or from a
    venue WebSocket
  - mdhandler: single-consumer market-data handler, updates the book and
    notifies the market maker
  - book: lock-free top-of-book registry, one atomic pointer per symbol
  - maker: per-symbol quote-ladder generator, skews quotes by inventory
  - risk: pre-trade checks and position/PnL bookkeeping
  - ordermgr: single-consumer order submission, risk-gated
  - boundary: order lifecycle tracking and the sink seam to an execution
    venue

# Source
  - synthetic or WebSocket market data feeds

# Produce
  - orders to an execution sink, gated by the risk engine

# Sharded
  - symbol
*/
package core
