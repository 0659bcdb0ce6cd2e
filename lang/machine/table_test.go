package machine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestVM() *VM {
	return New(nil, nil)
}

func TestTableSetGetDelete(t *testing.T) {
	vm := newTestVM()
	tbl := NewTable()

	a := vm.NewString("a")
	b := vm.NewString("b")

	require.True(t, tbl.Set(a, Number(1)))
	require.False(t, tbl.Set(a, Number(2))) // overwrite, not a new key
	require.Equal(t, 1, tbl.Count())

	v, ok := tbl.Get(a)
	require.True(t, ok)
	require.Equal(t, float64(2), v.AsNumber())

	_, ok = tbl.Get(b)
	require.False(t, ok)

	require.True(t, tbl.Delete(a))
	_, ok = tbl.Get(a)
	require.False(t, ok)
}

func TestTableGrowsAndKeepsAllEntries(t *testing.T) {
	vm := newTestVM()
	tbl := NewTable()

	const n = 200
	keys := make([]*ObjString, n)
	for i := 0; i < n; i++ {
		keys[i] = vm.NewString(string(rune('a')) + string(rune(i)))
		tbl.Set(keys[i], Number(float64(i)))
	}
	require.Equal(t, n, tbl.Count())
	for i, k := range keys {
		v, ok := tbl.Get(k)
		require.True(t, ok)
		require.Equal(t, float64(i), v.AsNumber())
	}
}

func TestStringInterningReturnsSameObject(t *testing.T) {
	vm := newTestVM()
	a := vm.NewString("hello")
	b := vm.NewString("hello")
	require.Same(t, a, b)
}

func TestValueEqualityAndTruthy(t *testing.T) {
	require.True(t, Equal(Number(1), Number(1)))
	require.False(t, Equal(Number(1), Number(2)))
	require.False(t, Null.Truthy())
	require.False(t, Bool(false).Truthy())
	require.True(t, Bool(true).Truthy())
	require.True(t, Number(0).Truthy())

	vm := newTestVM()
	list1 := vm.NewList([]Value{Number(1), Number(2)})
	list2 := vm.NewList([]Value{Number(1), Number(2)})
	require.True(t, Equal(FromObj(list1), FromObj(list2)))

	list3 := vm.NewList([]Value{Number(1), Number(3)})
	require.False(t, Equal(FromObj(list1), FromObj(list3)))
}
