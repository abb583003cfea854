package section

// Partition splits vp into one request per block, in row-major order from
// the bottom-left block.
//
// When the subdivision is symmetric and the viewport spans the map's
// horizontal axis, each block below the axis whose reflection is also in
// the viewport is attached as the Mirror of that reflection rather than
// returned on its own.
func Partition(job *Job, vp Viewport, settings CalcSettings) ([]*Request, error) {
	if err := vp.Validate(); err != nil {
		return nil, err
	}

	sub := vp.Subdivision
	extent := vp.Extent()
	center := VectorInt{X: extent.Width / 2, Y: extent.Height / 2}
	symmetric := sub.Symmetric()

	all := make([]*Request, 0, extent.NumberOfCells())
	primaries := make(map[VectorLong]*Request)
	requestNumber := 0

	for y := range extent.Height {
		for x := range extent.Width {
			block := vp.BlockOffset.Add(VectorLong{X: int64(x), Y: int64(y)})
			inverted := symmetric && block.Y < 0
			if inverted {
				block.Y = -block.Y - 1
			}

			req := NewRequest(job, requestNumber)
			requestNumber++

			req.Subdivision = sub
			req.BlockOffset = block
			req.JobBlockOffset = vp.BlockOffset
			req.MapPosition = sub.BlockPosition(block)
			req.ScreenPosition = PointInt{X: x, Y: y}
			req.ScreenPositionRelativeToCenter = VectorInt{X: x - center.X, Y: y - center.Y}
			req.Settings = settings
			req.IsInverted = inverted

			if !inverted {
				primaries[block] = req
			}
			all = append(all, req)
		}
	}

	reqs := make([]*Request, 0, len(all))
	for _, req := range all {
		if req.IsInverted {
			if primary, ok := primaries[req.BlockOffset]; ok && primary.Mirror == nil {
				primary.Mirror = req
				continue
			}
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Flatten returns reqs followed by their mirrors.
func Flatten(reqs []*Request) []*Request {
	out := append(make([]*Request, 0, 2*len(reqs)), reqs...)
	for _, r := range reqs {
		if r.Mirror != nil {
			out = append(out, r.Mirror)
		}
	}
	return out
}
