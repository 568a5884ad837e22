package api

import (
	"context" // Context for Redis operations
	"fmt"     // Key formatting

	"instapay/internal/utils" // Cache helpers
)

// Every cached read of a user lives under utils.UserCachePrefix so one prefix delete drops it all

func userCachePrefix(userID uint) string {
	return utils.UserCachePrefix(userID)
}

func walletsCacheKey(userID uint) string {
	return userCachePrefix(userID) + "wallets"
}

func walletCacheKey(userID, walletID uint) string {
	return fmt.Sprintf("%swallet:%d", userCachePrefix(userID), walletID)
}

func historyCacheKey(userID uint, query string) string {
	return userCachePrefix(userID) + "txs:" + query
}

// invalidateUsers drops the cached wallets and history of each user
func (e *Env) invalidateUsers(ctx context.Context, userIDs ...uint) {
	utils.InvalidateUsers(ctx, e.Redis, userIDs...)
}
