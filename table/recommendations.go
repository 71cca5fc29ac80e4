package table

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/logging"
	"github.com/rushteam/recserve/metrics"
)

// Outcome 是一次查表的结果类型。
type Outcome int

const (
	// OutcomeHit personal 表中有该用户
	OutcomeHit Outcome = iota
	// OutcomeMiss personal 表中没有该用户，使用 default 表兜底
	OutcomeMiss
	// OutcomeFault 数据访问异常（表未加载等），不返回任何物品
	OutcomeFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	default:
		return "fault"
	}
}

// Result 是 Lookup 的返回值，Outcome 决定 Items / Err 哪个有效。
type Result struct {
	Outcome Outcome
	Items   []int64
	Err     error
}

var (
	errPersonalNotLoaded = core.NewDomainError(core.ModuleTable, core.ErrorCodeInternalError, "table: personal recommendations not loaded")
	errDefaultNotLoaded  = core.NewDomainError(core.ModuleTable, core.ErrorCodeInternalError, "table: default recommendations not loaded")
)

// Store 持有 personal / default 两张推荐表和请求计数器。
type Store struct {
	reader Reader
	logger zerolog.Logger

	mu       sync.RWMutex
	personal map[int64][]int64
	defaults []int64 // nil 表示未加载，空切片表示加载了空表

	counters Counters
}

// NewStore 创建空的 Store，表需要通过 Load 加载。
func NewStore(reader Reader) *Store {
	return &Store{
		reader: reader,
		logger: logging.With().Str("component", "table").Logger(),
	}
}

// Load 读取一张表并替换内存中同类型的表。
// personal 表按 user_id 建索引，每个用户的物品保持文件中的顺序。
// 读取或解析失败时返回错误，调用方（启动流程）应直接退出。
func (s *Store) Load(ctx context.Context, kind Kind, path string, columns []string) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	for _, col := range kind.requiredColumns() {
		if !slices.Contains(columns, col) {
			return fmt.Errorf("load %s recommendations: column %q is required", kind, col)
		}
	}

	s.logger.Info().Str("type", string(kind)).Str("path", path).Msg("Loading recommendations")
	start := time.Now()

	rows, err := s.reader.Read(ctx, path, columns)
	if err != nil {
		return fmt.Errorf("load %s recommendations from %s: %w", kind, path, err)
	}

	switch kind {
	case KindPersonal:
		personal := make(map[int64][]int64)
		for _, r := range rows {
			personal[r.UserID] = append(personal[r.UserID], r.ItemID)
		}
		s.mu.Lock()
		s.personal = personal
		s.mu.Unlock()
	case KindDefault:
		defaults := make([]int64, 0, len(rows))
		for _, r := range rows {
			defaults = append(defaults, r.ItemID)
		}
		s.mu.Lock()
		s.defaults = defaults
		s.mu.Unlock()
	}

	s.logger.Info().
		Str("type", string(kind)).
		Int("rows", len(rows)).
		Dur("took", time.Since(start)).
		Msg("Loaded")
	return nil
}

// Lookup 查表但不计数：personal 命中返回 Hit，未命中用 default 兜底返回 Miss，
// 表未加载返回 Fault。
func (s *Store) Lookup(userID int64, k int) Result {
	s.mu.RLock()
	personal, defaults := s.personal, s.defaults
	s.mu.RUnlock()

	if personal == nil {
		return Result{Outcome: OutcomeFault, Err: errPersonalNotLoaded}
	}
	if items, ok := personal[userID]; ok {
		return Result{Outcome: OutcomeHit, Items: head(items, k)}
	}
	if defaults == nil {
		return Result{Outcome: OutcomeFault, Err: errDefaultNotLoaded}
	}
	return Result{Outcome: OutcomeMiss, Items: head(defaults, k)}
}

// Get 返回用户的前 k 个推荐物品，并按来源递增对应计数器。
// 数据异常时记录错误日志并返回空列表，该请求不计入任何计数器。
func (s *Store) Get(userID int64, k int) []int64 {
	res := s.Lookup(userID, k)
	switch res.Outcome {
	case OutcomeHit:
		s.counters.IncPersonal()
	case OutcomeMiss:
		s.counters.IncDefault()
	default:
		metrics.LookupFaults.Inc()
		s.logger.Error().Err(res.Err).Int64("user_id", userID).Msg("No recommendations found")
		return []int64{}
	}
	return res.Items
}

// Stats 把两个计数器写入日志，返回当前值。通常只在进程退出时调用一次。
func (s *Store) Stats() Snapshot {
	snap := s.counters.Snapshot()
	s.logger.Info().Msg("Stats for recommendations")
	s.logger.Info().Str("name", StatPersonal).Int64("value", snap.Personal).Msgf("%-30s %d", StatPersonal, snap.Personal)
	s.logger.Info().Str("name", StatDefault).Int64("value", snap.Default).Msgf("%-30s %d", StatDefault, snap.Default)
	return snap
}

// Counters 返回 Store 持有的计数器（用于注册 Prometheus collector）。
func (s *Store) Counters() *Counters {
	return &s.counters
}

// Sizes 返回 personal 表的用户数与 default 表的物品数，未加载为 0。
func (s *Store) Sizes() (users, defaultItems int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.personal), len(s.defaults)
}

// Ready 两张表都已加载。
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.personal != nil && s.defaults != nil
}

// head 返回前 k 个元素的副本；k <= 0 返回空切片。
func head(items []int64, k int) []int64 {
	if k <= 0 {
		return []int64{}
	}
	if k > len(items) {
		k = len(items)
	}
	return slices.Clone(items[:k])
}
